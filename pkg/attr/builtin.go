package attr

import "slices"

// Built-in attribute names.
const (
	Language          = "language"
	Framework         = "framework"
	Database          = "database"
	ORM               = "orm"
	Infra             = "infra"
	APIStyle          = "api_style"
	MutationTool      = "mutation_tool"
	RealtimeTransport = "realtime_transport"

	Scale           = "scale"
	Team            = "team"
	Testing         = "testing"
	Observability   = "observability"
	Realtime        = "realtime"
	DataSensitivity = "data_sensitivity"
	Compliance      = "compliance"
	SLA             = "sla"
	AuditLogging    = "audit_logging"

	Maturity        = "maturity"
	BreakingChanges = "breaking_changes"
	Priority        = "priority"
	Activity        = "activity"

	OS     = "os"
	Arch   = "arch"
	Shell  = "shell"
	Locale = "locale"
)

// None is the "not applicable" value shared by most enum domains.
const None = "none"

// Unknown is the default of system attributes.
const Unknown = "unknown"

// BackendFrameworks are the [Framework] values that serve an API.
var BackendFrameworks = []string{
	"express", "nestjs", "fastify", "hono", "koa",
	"django", "flask", "fastapi",
	"rails", "sinatra",
	"laravel", "symfony",
	"spring",
	"gin", "echo", "fiber", "chi",
	"actix", "axum",
	"aspnet",
}

// Builtins returns the built-in attribute definitions.
func Builtins() []Attribute {
	return []Attribute{
		{
			Name:   Language,
			Kind:   KindDetectable,
			Domain: DomainEnum,
			Prompt: "Primary language",
			Values: []string{
				"go", "typescript", "javascript", "python", "java", "kotlin", "rust",
				"ruby", "php", "csharp", "dart", "swift", "other",
			},
			Text: map[string]string{
				"go": "Go", "typescript": "TypeScript", "javascript": "JavaScript",
				"python": "Python", "java": "Java", "kotlin": "Kotlin", "rust": "Rust",
				"ruby": "Ruby", "php": "PHP", "csharp": "C#", "dart": "Dart",
				"swift": "Swift", "other": "Other",
			},
			Default: "other",
		},
		{
			Name:   Framework,
			Kind:   KindDetectable,
			Domain: DomainEnum,
			Prompt: "Primary framework",
			Values: slices.Concat(
				[]string{None, "react", "nextjs", "vue", "nuxt", "angular", "svelte"},
				BackendFrameworks,
				[]string{"flutter"},
			),
			Text: map[string]string{
				None: "None", "nextjs": "Next.js", "nestjs": "NestJS", "fastapi": "FastAPI",
				"aspnet": "ASP.NET",
			},
			Default: None,
		},
		{
			Name:   Database,
			Kind:   KindDetectable,
			Domain: DomainEnum,
			Prompt: "Primary database",
			Values: []string{
				None, "postgres", "mysql", "sqlite", "sqlserver", "mongodb", "redis", "dynamodb",
			},
			Text: map[string]string{
				None: "None", "postgres": "PostgreSQL", "mysql": "MySQL", "sqlite": "SQLite",
				"sqlserver": "SQL Server", "mongodb": "MongoDB", "redis": "Redis",
				"dynamodb": "DynamoDB",
			},
			Default: None,
		},
		{
			Name:   ORM,
			Kind:   KindDetectable,
			Domain: DomainEnum,
			Prompt: "Data access library",
			Values: []string{
				None, "prisma", "typeorm", "sequelize", "drizzle", "mongoose", "sqlalchemy",
				"django-orm", "activerecord", "eloquent", "doctrine", "hibernate", "gorm",
				"ent", "sqlx", "diesel", "sea-orm", "entity-framework",
			},
			Default: None,
		},
		{
			Name:   Infra,
			Kind:   KindDetectable,
			Domain: DomainEnum,
			Prompt: "Deployment infrastructure",
			Values: []string{None, "docker", "kubernetes", "serverless", "terraform"},
			Text: map[string]string{
				None: "None", "docker": "Docker", "kubernetes": "Kubernetes",
				"serverless": "Serverless", "terraform": "Terraform",
			},
			Default: None,
		},
		{
			Name:    APIStyle,
			Kind:    KindDetectable,
			Domain:  DomainEnum,
			Prompt:  "API style",
			Values:  []string{None, "rest", "graphql", "grpc", "trpc"},
			Text:    map[string]string{None: "None", "rest": "REST", "graphql": "GraphQL", "grpc": "gRPC", "trpc": "tRPC"},
			Default: None,
		},
		{
			Name:   MutationTool,
			Kind:   KindDetectable,
			Domain: DomainEnum,
			Prompt: "Mutation testing tool",
			Values: []string{
				None, "stryker", "pitest", "mutmut", "go-mutesting", "cargo-mutants", "infection",
			},
			Default: None,
		},
		{
			Name:    RealtimeTransport,
			Kind:    KindDetectable,
			Domain:  DomainEnum,
			Prompt:  "Real-time transport",
			Values:  []string{None, "websocket", "sse", "socketio", "webrtc"},
			Text:    map[string]string{None: "None", "websocket": "WebSocket", "sse": "Server-Sent Events", "socketio": "Socket.IO", "webrtc": "WebRTC"},
			Default: None,
		},
		{
			Name:    Scale,
			Kind:    KindInput,
			Domain:  DomainTier,
			Prompt:  "Project scale",
			Values:  []string{"prototype", "small", "medium", "large"},
			Text:    map[string]string{"prototype": "Prototype", "small": "Small", "medium": "Medium", "large": "Large"},
			Default: "prototype",
		},
		{
			Name:    Team,
			Kind:    KindInput,
			Domain:  DomainTier,
			Prompt:  "Team size",
			Values:  []string{"solo", "small", "large"},
			Text:    map[string]string{"solo": "Solo", "small": "2-5", "large": "6+"},
			Default: "solo",
		},
		{
			Name:    Testing,
			Kind:    KindInput,
			Domain:  DomainTier,
			Prompt:  "Testing strategy",
			Values:  []string{None, "basic", "standard", "full"},
			Text:    map[string]string{None: "None", "basic": "Basic", "standard": "Standard", "full": "Full"},
			Default: None,
		},
		{
			Name:    Observability,
			Kind:    KindInput,
			Domain:  DomainTier,
			Prompt:  "Observability level",
			Values:  []string{None, "basic", "standard", "full"},
			Text:    map[string]string{None: "None", "basic": "Basic", "standard": "Standard", "full": "Full"},
			Default: None,
		},
		{
			Name:    Realtime,
			Kind:    KindInput,
			Domain:  DomainTier,
			Prompt:  "Real-time features",
			Values:  []string{None, "basic", "advanced"},
			Text:    map[string]string{None: "None", "basic": "Basic", "advanced": "Advanced"},
			Default: None,
		},
		{
			Name:    DataSensitivity,
			Kind:    KindInput,
			Domain:  DomainEnum,
			Prompt:  "Data sensitivity",
			Values:  []string{"public", "internal", "confidential", "regulated"},
			Text:    map[string]string{"public": "Public", "internal": "Internal", "confidential": "Confidential", "regulated": "Regulated"},
			Default: "internal",
		},
		{
			Name:        Compliance,
			Kind:        KindInput,
			Domain:      DomainEnum,
			Prompt:      "Compliance requirements",
			Values:      []string{None, "gdpr", "soc2", "hipaa", "pci-dss"},
			Text:        map[string]string{None: "None", "gdpr": "GDPR", "soc2": "SOC 2", "hipaa": "HIPAA", "pci-dss": "PCI DSS"},
			Default:     None,
			MultiSelect: true,
		},
		{
			Name:    SLA,
			Kind:    KindInput,
			Domain:  DomainEnum,
			Prompt:  "Availability target",
			Values:  []string{None, "best-effort", "99.9", "99.99"},
			Text:    map[string]string{None: "None", "best-effort": "Best effort", "99.9": "99.9%", "99.99": "99.99%"},
			Default: None,
		},
		{
			Name:    AuditLogging,
			Kind:    KindInput,
			Domain:  DomainBool,
			Prompt:  "Audit logging required",
			Values:  []string{No, Yes},
			Text:    map[string]string{No: "No", Yes: "Yes"},
			Default: No,
		},
		{
			Name:    Maturity,
			Kind:    KindGuideline,
			Domain:  DomainEnum,
			Prompt:  "Project maturity",
			Values:  []string{"poc", "mvp", "production", "legacy"},
			Text:    map[string]string{"poc": "Proof of concept", "mvp": "MVP", "production": "Production", "legacy": "Legacy"},
			Default: "mvp",
		},
		{
			Name:    BreakingChanges,
			Kind:    KindGuideline,
			Domain:  DomainEnum,
			Prompt:  "Breaking change policy",
			Values:  []string{"allowed", "deprecate-first", "forbidden"},
			Text:    map[string]string{"allowed": "Allowed", "deprecate-first": "Deprecate first", "forbidden": "Forbidden"},
			Default: "deprecate-first",
		},
		{
			Name:    Priority,
			Kind:    KindGuideline,
			Domain:  DomainEnum,
			Prompt:  "Delivery priority",
			Values:  []string{"speed", "balanced", "quality"},
			Text:    map[string]string{"speed": "Speed", "balanced": "Balanced", "quality": "Quality"},
			Default: "balanced",
		},
		{
			Name:    Activity,
			Kind:    KindGuideline,
			Domain:  DomainEnum,
			Prompt:  "Commit activity",
			Values:  []string{"dormant", "occasional", "active"},
			Default: "occasional",
		},
		{Name: OS, Kind: KindSystem, Domain: DomainText, Prompt: "Operating system", Default: Unknown},
		{Name: Arch, Kind: KindSystem, Domain: DomainText, Prompt: "Architecture", Default: Unknown},
		{Name: Shell, Kind: KindSystem, Domain: DomainText, Prompt: "Shell", Default: Unknown},
		{Name: Locale, Kind: KindSystem, Domain: DomainText, Prompt: "Locale", Default: Unknown},
	}
}
