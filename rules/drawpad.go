//go:build ruleguard

package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// SandboxedFileAccess keeps the document store and the HTTP layer on the
// securefs sandbox. Direct os file calls there bypass path resolution and
// the os.Root confinement.
//
// Old pattern:
//
//	data, err := os.ReadFile(filepath.Join(root, p))
//
// New pattern:
//
//	data, err := s.fs.ReadFile(p)
func SandboxedFileAccess(m dsl.Matcher) {
	m.Match(
		`os.ReadFile($*_)`,
		`os.WriteFile($*_)`,
		`os.Open($*_)`,
		`os.OpenFile($*_)`,
		`os.Create($*_)`,
		`os.MkdirAll($*_)`,
		`os.ReadDir($*_)`,
		`os.Stat($*_)`,
		`os.Remove($*_)`,
	).
		Where(m.File().PkgPath.Matches(`internal/(docstore|api)$`) &&
			!m.File().Name.Matches(`_test\.go$`)).
		Report("access drawings through the securefs sandbox, not the os package")
}

// InjectedClock keeps the save coordinator deterministic under test: timers
// and timestamps go through its Clock.
func InjectedClock(m dsl.Matcher) {
	m.Match(
		`time.AfterFunc($*_)`,
		`time.NewTimer($*_)`,
		`time.After($*_)`,
		`time.Now()`,
		`time.Sleep($*_)`,
	).
		Where(m.File().PkgPath.Matches(`internal/drawpad$`) &&
			!m.File().Name.Matches(`(clock\.go|_test\.go)$`)).
		Report("use the coordinator Clock instead of the time package")
}

// EncodeDocuments catches documents serialized with encoding/json directly,
// which skips key ordering, indentation and the collaborators strip.
//
// Old pattern:
//
//	data, err := json.MarshalIndent(doc, "", "  ")
//
// New pattern:
//
//	data, err := doc.WithoutCollaborators().Encode()
func EncodeDocuments(m dsl.Matcher) {
	m.Match(
		`json.Marshal($doc)`,
		`json.MarshalIndent($doc, $*_)`,
	).
		Where(m["doc"].Type.Is("*drawing.Document") &&
			!m.File().PkgPath.Matches(`internal/drawing$`) &&
			!m.File().Name.Matches(`_test\.go$`)).
		Report("serialize documents with $doc.Encode()")
}

// WaitGroupGo replaces the Add/go/defer Done triple with wg.Go (Go 1.25+).
// Timer callbacks that register before the timer exists keep using Add.
func WaitGroupGo(m dsl.Matcher) {
	m.Match(`go func() { defer $wg.Done(); $*_ }()`).
		Where(m["wg"].Type.Is("*sync.WaitGroup")).
		Report("use $wg.Go(func() { ... }) instead of go func() { defer $wg.Done(); ... }()").
		Suggest("$wg.Go(func() { $*_ })")

	m.Match(`$wg.Add(1); go $f($*args)`).
		Where(m["wg"].Type.Is("*sync.WaitGroup")).
		Report("use $wg.Go(func() { $f($args) }) and drop Done from $f")
}

// TestContext prefers t.Context, which is cancelled when the test ends
// (Go 1.24+).
func TestContext(m dsl.Matcher) {
	m.Match(`context.Background()`, `context.TODO()`).
		Where(m.File().Name.Matches(`_test\.go$`)).
		Report("in tests, use t.Context() instead of $$")
}
