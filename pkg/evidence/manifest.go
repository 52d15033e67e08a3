package evidence

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/pelletier/go-toml/v2"
	"github.com/tidwall/gjson"
	"github.com/zclconf/go-cty/cty"
	"golang.org/x/mod/modfile"

	"github.com/macropower/ruler/pkg/attr"
	"github.com/macropower/ruler/pkg/execs"
	"github.com/macropower/ruler/pkg/log"
	"github.com/macropower/ruler/pkg/signal"
	"github.com/macropower/ruler/pkg/yaml"
)

// maxEvidence bounds the evidence strings recorded per signal.
const maxEvidence = 5

var errInvalidJSON = errors.New("invalid json")

var (
	reGemfile    = execs.NewLazyRegexp(`(?m)^\s*gem\s+['"]([^'"]+)['"]`)
	reGradleDep  = execs.NewLazyRegexp(`(?m)^\s*(?:implementation|api|compileOnly|runtimeOnly|testImplementation|testRuntimeOnly|kapt|annotationProcessor)\s*\(?\s*["']([^:"'\s]+):([^:"'\s]+)`)
	reGradleID   = execs.NewLazyRegexp(`\bid\s*\(?\s*["']([^"']+)["']`)
	reGradleKt   = execs.NewLazyRegexp(`\bkotlin\s*\(\s*["']jvm["']\s*\)`)
	rePEP508     = execs.NewLazyRegexp(`^\s*([A-Za-z0-9][A-Za-z0-9._-]*)`)
	reDockerFrom = execs.NewLazyRegexp(`(?im)^\s*FROM\s+(?:--\S+\s+)*(\S+)`)
)

// ManifestScanner derives signals from dependency manifests, build files
// and infrastructure definitions.
type ManifestScanner struct {
	walker *Walker
}

// NewManifestScanner creates a [ManifestScanner].
func NewManifestScanner(w *Walker) *ManifestScanner {
	return &ManifestScanner{walker: w}
}

// Name implements [Source].
func (s *ManifestScanner) Name() signal.Source {
	return signal.Manifest
}

// Collect implements [Source]. Malformed manifests are skipped.
func (s *ManifestScanner) Collect(ctx context.Context, root string) ([]signal.Signal, error) {
	logger := log.WithContext(ctx).With(slog.String("source", string(signal.Manifest)))
	set := newSignalSet(signal.Manifest, maxEvidence)

	files, err := s.walker.Files(ctx, root)

	for _, f := range files {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return set.list(), ctxErr
		}

		parse := manifestParserFor(f)
		if parse == nil {
			continue
		}

		data, ok := s.walker.Read(f)
		if !ok {
			logger.Debug("skip unreadable manifest", slog.String("path", f.Path))
			continue
		}

		m := &manifest{file: f, set: set}
		if perr := parse(m, data); perr != nil {
			logger.Debug("skip malformed manifest",
				slog.String("path", f.Path),
				slog.Any("err", perr),
			)
		}
	}

	return set.list(), err
}

type manifestParser func(m *manifest, data []byte) error

//nolint:gocyclo // File name dispatch table.
func manifestParserFor(f File) manifestParser {
	base := f.Base()

	switch {
	case base == "go.mod":
		return parseGoMod
	case base == "package.json":
		return parsePackageJSON
	case base == "tsconfig.json":
		return fixed(hint{attr.Language, "typescript", 0.9})
	case base == "composer.json":
		return parseComposerJSON
	case base == "pyproject.toml":
		return parsePyProject
	case base == "Pipfile":
		return parsePipfile
	case strings.HasPrefix(base, "requirements") && f.Ext() == ".txt":
		return parseRequirements
	case base == "Cargo.toml":
		return parseCargo
	case base == "Gemfile":
		return parseGemfile
	case base == "build.gradle", base == "build.gradle.kts":
		return parseGradle
	case base == "pom.xml":
		return parsePom
	case f.Ext() == ".csproj":
		return parseCSProj
	case base == "pubspec.yaml":
		return parsePubspec
	case isComposeFile(base):
		return parseCompose
	case base == "Dockerfile", strings.HasPrefix(base, "Dockerfile."), f.Ext() == ".dockerfile":
		return parseDockerfile
	case base == "Chart.yaml", base == "kustomization.yaml", base == "kustomization.yml":
		return fixed(hint{attr.Infra, "kubernetes", 0.9})
	case base == "serverless.yml", base == "serverless.yaml":
		return fixed(hint{attr.Infra, "serverless", 0.9})
	case f.Ext() == ".tf":
		return parseTerraform
	}

	return nil
}

func isComposeFile(base string) bool {
	ext := path.Ext(base)
	if ext != ".yml" && ext != ".yaml" {
		return false
	}

	name := strings.TrimSuffix(base, ext)

	return name == "compose" || name == "docker-compose" || strings.HasPrefix(name, "docker-compose.")
}

// manifest records findings from one file.
type manifest struct {
	set  *signalSet
	file File
}

func (m *manifest) found(h hint) {
	m.set.add(h, "found "+m.file.Path)
}

func (m *manifest) dependency(eco Ecosystem, name string) {
	for _, h := range lookupDependency(eco, name) {
		m.set.add(h, fmt.Sprintf("found dependency %s in %s", name, m.file.Path))
	}
}

func fixed(h hint) manifestParser {
	return func(m *manifest, _ []byte) error {
		m.found(h)
		return nil
	}
}

func parseGoMod(m *manifest, data []byte) error {
	f, err := modfile.ParseLax(m.file.Path, data, nil)
	if err != nil {
		return fmt.Errorf("parse go.mod: %w", err)
	}

	m.found(hint{attr.Language, "go", 0.9})

	for _, r := range f.Require {
		if !r.Indirect {
			m.dependency(EcosystemGo, r.Mod.Path)
		}
	}

	return nil
}

func parsePackageJSON(m *manifest, data []byte) error {
	if !gjson.ValidBytes(data) {
		return errInvalidJSON
	}

	doc := gjson.ParseBytes(data)
	ts := false

	for _, key := range []string{"dependencies", "devDependencies", "peerDependencies", "optionalDependencies"} {
		doc.Get(key).ForEach(func(k, _ gjson.Result) bool {
			if k.String() == "typescript" {
				ts = true
			}

			m.dependency(EcosystemNPM, k.String())

			return true
		})
	}

	if !ts {
		m.found(hint{attr.Language, "javascript", 0.8})
	}

	return nil
}

func parseComposerJSON(m *manifest, data []byte) error {
	if !gjson.ValidBytes(data) {
		return errInvalidJSON
	}

	m.found(hint{attr.Language, "php", 0.9})

	doc := gjson.ParseBytes(data)
	for _, key := range []string{"require", "require-dev"} {
		doc.Get(key).ForEach(func(k, _ gjson.Result) bool {
			name := k.String()
			if name != "php" && !strings.HasPrefix(name, "ext-") {
				m.dependency(EcosystemComposer, name)
			}

			return true
		})
	}

	return nil
}

type pyProject struct {
	Project struct {
		OptionalDependencies map[string][]string `toml:"optional-dependencies"`
		Dependencies         []string            `toml:"dependencies"`
	} `toml:"project"`
	Tool struct {
		Poetry struct {
			Dependencies    map[string]any `toml:"dependencies"`
			DevDependencies map[string]any `toml:"dev-dependencies"`
			Group           map[string]struct {
				Dependencies map[string]any `toml:"dependencies"`
			} `toml:"group"`
		} `toml:"poetry"`
	} `toml:"tool"`
	DependencyGroups map[string][]any `toml:"dependency-groups"`
}

func parsePyProject(m *manifest, data []byte) error {
	var p pyProject
	if err := toml.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("parse pyproject.toml: %w", err)
	}

	m.found(hint{attr.Language, "python", 0.9})

	requirements := p.Project.Dependencies
	for _, deps := range p.Project.OptionalDependencies {
		requirements = append(requirements, deps...)
	}

	for _, group := range p.DependencyGroups {
		for _, d := range group {
			// Entries may also be include-group tables.
			if s, ok := d.(string); ok {
				requirements = append(requirements, s)
			}
		}
	}

	for _, r := range requirements {
		if name := requirementName(r); name != "" {
			m.dependency(EcosystemPyPI, name)
		}
	}

	tables := []map[string]any{p.Tool.Poetry.Dependencies, p.Tool.Poetry.DevDependencies}
	for _, g := range p.Tool.Poetry.Group {
		tables = append(tables, g.Dependencies)
	}

	for _, t := range tables {
		for name := range t {
			if name != "python" {
				m.dependency(EcosystemPyPI, name)
			}
		}
	}

	return nil
}

func parsePipfile(m *manifest, data []byte) error {
	var p struct {
		Packages    map[string]any `toml:"packages"`
		DevPackages map[string]any `toml:"dev-packages"`
	}
	if err := toml.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("parse Pipfile: %w", err)
	}

	m.found(hint{attr.Language, "python", 0.9})

	for _, t := range []map[string]any{p.Packages, p.DevPackages} {
		for name := range t {
			m.dependency(EcosystemPyPI, name)
		}
	}

	return nil
}

func parseRequirements(m *manifest, data []byte) error {
	m.found(hint{attr.Language, "python", 0.9})

	for line := range strings.Lines(string(data)) {
		line, _, _ = strings.Cut(line, "#")

		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "-") {
			continue
		}

		if name := requirementName(line); name != "" {
			m.dependency(EcosystemPyPI, name)
		}
	}

	return nil
}

// requirementName extracts the distribution name from a PEP 508 string.
func requirementName(req string) string {
	match := rePEP508.FindStringSubmatch(req)
	if match == nil {
		return ""
	}

	return match[1]
}

func parseCargo(m *manifest, data []byte) error {
	var c struct {
		Dependencies      map[string]any `toml:"dependencies"`
		DevDependencies   map[string]any `toml:"dev-dependencies"`
		BuildDependencies map[string]any `toml:"build-dependencies"`
		Workspace         struct {
			Dependencies map[string]any `toml:"dependencies"`
		} `toml:"workspace"`
	}
	if err := toml.Unmarshal(data, &c); err != nil {
		return fmt.Errorf("parse Cargo.toml: %w", err)
	}

	m.found(hint{attr.Language, "rust", 0.9})

	for _, t := range []map[string]any{c.Dependencies, c.DevDependencies, c.BuildDependencies, c.Workspace.Dependencies} {
		for name := range t {
			m.dependency(EcosystemCargo, name)
		}
	}

	return nil
}

func parseGemfile(m *manifest, data []byte) error {
	m.found(hint{attr.Language, "ruby", 0.9})

	for _, match := range reGemfile.FindAllSubmatch(data, -1) {
		m.dependency(EcosystemGem, string(match[1]))
	}

	return nil
}

func parseGradle(m *manifest, data []byte) error {
	m.found(hint{attr.Language, "java", 0.8})

	for _, match := range reGradleDep.FindAllSubmatch(data, -1) {
		m.dependency(EcosystemMaven, string(match[1])+":"+string(match[2]))
	}

	for _, match := range reGradleID.FindAllSubmatch(data, -1) {
		m.dependency(EcosystemMaven, string(match[1]))
	}

	if reGradleKt.Match(data) {
		m.dependency(EcosystemMaven, "org.jetbrains.kotlin.jvm")
	}

	return nil
}

type mavenCoordinate struct {
	GroupID    string `xml:"groupId"`
	ArtifactID string `xml:"artifactId"`
}

func (c mavenCoordinate) String() string {
	return c.GroupID + ":" + c.ArtifactID
}

func parsePom(m *manifest, data []byte) error {
	var p struct {
		Parent       mavenCoordinate   `xml:"parent"`
		Dependencies []mavenCoordinate `xml:"dependencies>dependency"`
		Plugins      []mavenCoordinate `xml:"build>plugins>plugin"`
	}
	if err := xml.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("parse pom.xml: %w", err)
	}

	m.found(hint{attr.Language, "java", 0.9})

	if p.Parent.ArtifactID != "" {
		m.dependency(EcosystemMaven, p.Parent.String())
	}

	for _, c := range append(p.Dependencies, p.Plugins...) {
		m.dependency(EcosystemMaven, c.String())
	}

	return nil
}

func parseCSProj(m *manifest, data []byte) error {
	var p struct {
		SDK        string `xml:"Sdk,attr"`
		References []struct {
			Include string `xml:"Include,attr"`
		} `xml:"ItemGroup>PackageReference"`
	}
	if err := xml.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("parse %s: %w", m.file.Base(), err)
	}

	m.found(hint{attr.Language, "csharp", 0.9})

	if p.SDK == "Microsoft.NET.Sdk.Web" {
		m.found(hint{attr.Framework, "aspnet", 0.9})
	}

	for _, r := range p.References {
		m.dependency(EcosystemNuGet, r.Include)
	}

	return nil
}

func parsePubspec(m *manifest, data []byte) error {
	var p struct {
		Dependencies    map[string]any `yaml:"dependencies"`
		DevDependencies map[string]any `yaml:"dev_dependencies"`
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("parse pubspec.yaml: %w", err)
	}

	m.found(hint{attr.Language, "dart", 0.9})

	for _, t := range []map[string]any{p.Dependencies, p.DevDependencies} {
		for name := range t {
			m.dependency(EcosystemPub, name)
		}
	}

	return nil
}

func parseCompose(m *manifest, data []byte) error {
	var c struct {
		Services map[string]struct {
			Image string `yaml:"image"`
		} `yaml:"services"`
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return fmt.Errorf("parse %s: %w", m.file.Base(), err)
	}

	m.found(hint{attr.Infra, "docker", 0.8})

	for _, svc := range c.Services {
		if svc.Image != "" {
			m.dependency(EcosystemDocker, svc.Image)
		}
	}

	return nil
}

func parseDockerfile(m *manifest, data []byte) error {
	m.found(hint{attr.Infra, "docker", 0.9})

	for _, match := range reDockerFrom.FindAllSubmatch(data, -1) {
		m.dependency(EcosystemDocker, string(match[1]))
	}

	return nil
}

// terraformHints maps resource types to signals. An entry with an
// attribute name reads the database engine from that attribute.
var terraformHints = map[string]struct {
	engineAttr string
	hints      []hint
}{
	"aws_db_instance":                    {engineAttr: "engine"},
	"aws_rds_cluster":                    {engineAttr: "engine"},
	"google_sql_database_instance":       {engineAttr: "database_version"},
	"azurerm_postgresql_flexible_server": {hints: hs(db("postgres"))},
	"azurerm_mysql_flexible_server":      {hints: hs(db("mysql"))},
	"azurerm_mssql_server":               {hints: hs(db("sqlserver"))},
	"aws_dynamodb_table":                 {hints: hs(db("dynamodb"))},
	"aws_docdb_cluster":                  {hints: hs(db("mongodb"))},
	"aws_elasticache_cluster":            {hints: hs(hint{attr.Database, "redis", 0.7})},
	"aws_elasticache_replication_group":  {hints: hs(hint{attr.Database, "redis", 0.7})},
	"aws_lambda_function":                {hints: hs(hint{attr.Infra, "serverless", 0.7})},
	"aws_eks_cluster":                    {hints: hs(hint{attr.Infra, "kubernetes", 0.7})},
	"google_container_cluster":           {hints: hs(hint{attr.Infra, "kubernetes", 0.7})},
	"azurerm_kubernetes_cluster":         {hints: hs(hint{attr.Infra, "kubernetes", 0.7})},
	"kubernetes_deployment":              {hints: hs(hint{attr.Infra, "kubernetes", 0.7})},
	"aws_ecs_service":                    {hints: hs(hint{attr.Infra, "docker", 0.6})},
}

var terraformSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "resource", LabelNames: []string{"type", "name"}},
		{Type: "module", LabelNames: []string{"name"}},
	},
}

func parseTerraform(m *manifest, data []byte) error {
	f, diags := hclparse.NewParser().ParseHCL(data, m.file.Path)
	if diags.HasErrors() {
		return fmt.Errorf("parse %s: %w", m.file.Path, diags)
	}

	content, _, diags := f.Body.PartialContent(terraformSchema)
	if diags.HasErrors() {
		return fmt.Errorf("decode %s: %w", m.file.Path, diags)
	}

	if len(content.Blocks) > 0 {
		m.found(hint{attr.Infra, "terraform", 0.9})
	}

	for _, block := range content.Blocks {
		if block.Type != "resource" {
			continue
		}

		resourceType := block.Labels[0]

		th, ok := terraformHints[resourceType]
		if !ok {
			continue
		}

		evidence := fmt.Sprintf("found resource %s.%s in %s", resourceType, block.Labels[1], m.file.Path)
		for _, h := range th.hints {
			m.set.add(h, evidence)
		}

		if th.engineAttr == "" {
			continue
		}

		if v := staticString(block.Body, th.engineAttr); v != "" {
			if engine := databaseEngine(v); engine != "" {
				m.set.add(db(engine), fmt.Sprintf("%s (%s = %q)", evidence, th.engineAttr, v))
			}
		}
	}

	return nil
}

// staticString returns the value of a string attribute that needs no
// evaluation context.
func staticString(body hcl.Body, name string) string {
	content, _, diags := body.PartialContent(&hcl.BodySchema{
		Attributes: []hcl.AttributeSchema{{Name: name}},
	})
	if diags.HasErrors() {
		return ""
	}

	a, ok := content.Attributes[name]
	if !ok {
		return ""
	}

	v, diags := a.Expr.Value(nil)
	if diags.HasErrors() || !v.IsKnown() || v.IsNull() || !v.Type().Equals(cty.String) {
		return ""
	}

	return v.AsString()
}

var databaseEngines = []struct {
	substr string
	engine string
}{
	{"postgres", "postgres"},
	{"mysql", "mysql"},
	{"mariadb", "mysql"},
	{"sqlserver", "sqlserver"},
	{"redis", "redis"},
	{"valkey", "redis"},
}

func databaseEngine(v string) string {
	v = strings.ToLower(v)
	for _, e := range databaseEngines {
		if strings.Contains(v, e.substr) {
			return e.engine
		}
	}

	return ""
}
