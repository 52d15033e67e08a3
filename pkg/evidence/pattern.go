package evidence

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"path"
	"slices"
	"strings"

	"github.com/macropower/ruler/pkg/attr"
	"github.com/macropower/ruler/pkg/execs"
	"github.com/macropower/ruler/pkg/log"
	"github.com/macropower/ruler/pkg/signal"
)

const (
	// minLanguageShare is the smallest share of source files for which a
	// language hint is reported.
	minLanguageShare = 0.05
	// maxContentFiles bounds how many files are searched for code patterns.
	maxContentFiles = 2000
)

var sourceLanguages = map[string]string{
	".go":    "go",
	".ts":    "typescript",
	".tsx":   "typescript",
	".mts":   "typescript",
	".js":    "javascript",
	".jsx":   "javascript",
	".mjs":   "javascript",
	".cjs":   "javascript",
	".py":    "python",
	".java":  "java",
	".kt":    "kotlin",
	".rs":    "rust",
	".rb":    "ruby",
	".php":   "php",
	".cs":    "csharp",
	".dart":  "dart",
	".swift": "swift",
}

// extensionHints apply once per extension present.
var extensionHints = map[string]hint{
	".graphql": {attr.APIStyle, "graphql", 0.7},
	".gql":     {attr.APIStyle, "graphql", 0.7},
	".proto":   {attr.APIStyle, "grpc", 0.6},
	".prisma":  {attr.ORM, "prisma", 0.7},
}

// codePattern is a characteristic fragment of source code.
type codePattern struct {
	re    *execs.LazyRegexp
	exts  []string
	hints []hint
}

func pattern(expr string, exts []string, hints ...hint) codePattern {
	return codePattern{re: execs.NewLazyRegexp(expr), exts: exts, hints: hints}
}

var (
	extGo     = []string{".go"}
	extJS     = []string{".js", ".jsx", ".mjs", ".cjs", ".ts", ".tsx", ".mts"}
	extPy     = []string{".py"}
	extJVM    = []string{".java", ".kt"}
	extYAML   = []string{".yaml", ".yml"}
	extSource = slices.Sorted(maps.Keys(sourceLanguages))
)

var codePatterns = []codePattern{
	pattern(`(?m)^\s*(?:from\s+fastapi\s+import|import\s+fastapi)`, extPy, hint{attr.Framework, "fastapi", 0.6}),
	pattern(`(?m)^\s*from\s+flask\s+import`, extPy, hint{attr.Framework, "flask", 0.6}),
	pattern(`(?m)^\s*from\s+django[.\s]`, extPy, hint{attr.Framework, "django", 0.6}),
	pattern(`(?m)^\s*from\s+sqlalchemy[.\s]`, extPy, hint{attr.ORM, "sqlalchemy", 0.6}),
	pattern(`"github\.com/gin-gonic/gin"`, extGo, hint{attr.Framework, "gin", 0.6}),
	pattern(`"github\.com/labstack/echo`, extGo, hint{attr.Framework, "echo", 0.6}),
	pattern(`"github\.com/go-chi/chi`, extGo, hint{attr.Framework, "chi", 0.6}),
	pattern(`\bgorm\.Open\(`, extGo, hint{attr.ORM, "gorm", 0.6}),
	pattern(`require\(\s*['"]express['"]\s*\)|from\s+['"]express['"]`, extJS, hint{attr.Framework, "express", 0.6}),
	pattern(`from\s+['"]@nestjs/`, extJS, hint{attr.Framework, "nestjs", 0.6}),
	pattern(`new\s+PrismaClient\(`, extJS, hint{attr.ORM, "prisma", 0.6}),
	pattern(`@SpringBootApplication`, extJVM, hint{attr.Framework, "spring", 0.7}),
	pattern(
		`@RestController|@GetMapping|\b(?:app|router)\.(?:get|post|put|delete)\(|@app\.(?:get|post|route)\(|\b[er]\.(?:GET|POST)\(|\bHandleFunc\(`,
		extSource, hint{attr.APIStyle, "rest", 0.5},
	),
	pattern(
		`new\s+WebSocket(?:Server)?\(|websocket\.Upgrader|\bWebSocketGateway\b`,
		extSource, hint{attr.RealtimeTransport, "websocket", 0.6}, hint{attr.Realtime, "basic", 0.5},
	),
	pattern(
		`text/event-stream|new\s+EventSource\(`,
		extSource, hint{attr.RealtimeTransport, "sse", 0.6}, hint{attr.Realtime, "basic", 0.5},
	),
	pattern(
		`\bRTCPeerConnection\b|"github\.com/pion/webrtc`,
		extSource, hint{attr.RealtimeTransport, "webrtc", 0.6}, hint{attr.Realtime, "advanced", 0.4},
	),
	pattern(`\botel\.Tracer\(|@opentelemetry/api|from\s+opentelemetry\s+import`, extSource, hint{attr.Observability, "standard", 0.5}),
	pattern(`(?m)^kind:\s*(?:Deployment|StatefulSet|DaemonSet)\s*$`, extYAML, hint{attr.Infra, "kubernetes", 0.6}),
}

// PatternScanner derives signals from file extensions, test layout and
// characteristic code fragments.
type PatternScanner struct {
	walker *Walker
}

// NewPatternScanner creates a [PatternScanner].
func NewPatternScanner(w *Walker) *PatternScanner {
	return &PatternScanner{walker: w}
}

// Name implements [Source].
func (s *PatternScanner) Name() signal.Source {
	return signal.CodePattern
}

// Collect implements [Source].
func (s *PatternScanner) Collect(ctx context.Context, root string) ([]signal.Signal, error) {
	logger := log.WithContext(ctx).With(slog.String("source", string(signal.CodePattern)))
	set := newSignalSet(signal.CodePattern, maxEvidence)

	files, err := s.walker.Files(ctx, root)

	languages := map[string]int{}
	sources, tests, searched := 0, 0, 0

	for _, f := range files {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
			break
		}

		ext := f.Ext()

		if h, ok := extensionHints[ext]; ok {
			set.add(h, "found "+f.Path)
		}

		if lang, ok := sourceLanguages[ext]; ok {
			sources++
			languages[lang]++

			if isTestFile(f.Path) {
				tests++
			}
		}

		if searched >= maxContentFiles || !searchable(ext) {
			continue
		}

		data, ok := s.walker.Read(f)
		if !ok {
			continue
		}

		searched++

		for _, p := range codePatterns {
			if slices.Contains(p.exts, ext) && p.re.Match(data) {
				for _, h := range p.hints {
					set.add(h, "matched code pattern in "+f.Path)
				}
			}
		}
	}

	addLanguageHints(set, languages, sources)
	addTestingHint(set, tests, sources)

	logger.Debug("scanned code patterns",
		slog.Int("files", len(files)),
		slog.Int("sources", sources),
		slog.Int("tests", tests),
	)

	return set.list(), err
}

func searchable(ext string) bool {
	if _, ok := sourceLanguages[ext]; ok {
		return true
	}

	return slices.Contains(extYAML, ext)
}

// addLanguageHints reports each language by its share of source files.
func addLanguageHints(set *signalSet, languages map[string]int, total int) {
	if total == 0 {
		return
	}

	for _, lang := range slices.Sorted(maps.Keys(languages)) {
		n := languages[lang]

		share := float64(n) / float64(total)
		if share < minLanguageShare {
			continue
		}

		conf := math.Min(0.5+0.2*share, 0.7)
		set.add(
			hint{attr.Language, lang, roundConfidence(conf)},
			fmt.Sprintf("%d of %d source files are %s", n, total, lang),
		)
	}
}

// addTestingHint reports a weak testing tier from the share of test files.
func addTestingHint(set *signalSet, tests, total int) {
	if tests == 0 || total == 0 {
		return
	}

	value := "basic"
	if float64(tests)/float64(total) >= 0.3 {
		value = "standard"
	}

	set.add(
		hint{attr.Testing, value, 0.5},
		fmt.Sprintf("%d of %d source files are tests", tests, total),
	)
}

func roundConfidence(c float64) float64 {
	return math.Round(c*1000) / 1000
}

var testDirs = []string{"test", "tests", "__tests__", "spec", "e2e"}

func isTestFile(p string) bool {
	base := path.Base(p)
	name := strings.TrimSuffix(base, path.Ext(base))

	switch {
	case strings.HasSuffix(name, "_test"), strings.HasSuffix(name, "_spec"),
		strings.HasSuffix(name, ".test"), strings.HasSuffix(name, ".spec"),
		strings.HasPrefix(name, "test_"),
		strings.HasSuffix(name, "Test"), strings.HasSuffix(name, "Tests"):
		return true
	}

	for _, dir := range strings.Split(path.Dir(p), "/") {
		if slices.Contains(testDirs, dir) {
			return true
		}
	}

	return false
}
