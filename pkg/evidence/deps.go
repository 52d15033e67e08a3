package evidence

import (
	"strings"

	"github.com/macropower/ruler/pkg/attr"
)

// Ecosystem names a package namespace.
type Ecosystem string

const (
	EcosystemGo       Ecosystem = "go"
	EcosystemNPM      Ecosystem = "npm"
	EcosystemPyPI     Ecosystem = "pypi"
	EcosystemComposer Ecosystem = "composer"
	EcosystemCargo    Ecosystem = "cargo"
	EcosystemGem      Ecosystem = "gem"
	EcosystemMaven    Ecosystem = "maven"
	EcosystemPub      Ecosystem = "pub"
	EcosystemNuGet    Ecosystem = "nuget"
	EcosystemDocker   Ecosystem = "docker"
)

func fw(v string) hint  { return hint{attr.Framework, v, 0.9} }
func db(v string) hint  { return hint{attr.Database, v, 0.8} }
func orm(v string) hint { return hint{attr.ORM, v, 0.9} }
func api(v string) hint { return hint{attr.APIStyle, v, 0.8} }

func rt(v string) []hint {
	return []hint{
		{attr.RealtimeTransport, v, 0.8},
		{attr.Realtime, "basic", 0.5},
	}
}

func obs(v string) hint { return hint{attr.Observability, v, 0.6} }
func tst(v string) hint { return hint{attr.Testing, v, 0.6} }

func mut(v string) []hint {
	return []hint{
		{attr.MutationTool, v, 0.9},
		{attr.Testing, "full", 0.6},
	}
}

func hs(h ...hint) []hint { return h }

// dependencyHints maps package names to the signals they imply.
//
// Keys are normalized with [normalizePackage].
var dependencyHints = map[Ecosystem]map[string][]hint{
	EcosystemNPM: {
		"react":                    hs(hint{attr.Framework, "react", 0.8}),
		"next":                     hs(fw("nextjs")),
		"vue":                      hs(hint{attr.Framework, "vue", 0.8}),
		"nuxt":                     hs(fw("nuxt")),
		"@angular/core":            hs(fw("angular")),
		"svelte":                   hs(hint{attr.Framework, "svelte", 0.8}),
		"@sveltejs/kit":            hs(fw("svelte")),
		"express":                  hs(fw("express")),
		"@nestjs/core":             hs(fw("nestjs")),
		"fastify":                  hs(fw("fastify")),
		"hono":                     hs(fw("hono")),
		"koa":                      hs(fw("koa")),
		"pg":                       hs(db("postgres")),
		"postgres":                 hs(db("postgres")),
		"mysql":                    hs(db("mysql")),
		"mysql2":                   hs(db("mysql")),
		"sqlite3":                  hs(db("sqlite")),
		"better-sqlite3":           hs(db("sqlite")),
		"mongodb":                  hs(db("mongodb")),
		"mongoose":                 hs(db("mongodb"), orm("mongoose")),
		"ioredis":                  hs(hint{attr.Database, "redis", 0.7}),
		"redis":                    hs(hint{attr.Database, "redis", 0.7}),
		"mssql":                    hs(db("sqlserver")),
		"@aws-sdk/client-dynamodb": hs(db("dynamodb")),
		"prisma":                   hs(orm("prisma")),
		"@prisma/client":           hs(orm("prisma")),
		"typeorm":                  hs(orm("typeorm")),
		"sequelize":                hs(orm("sequelize")),
		"drizzle-orm":              hs(orm("drizzle")),
		"graphql":                  hs(api("graphql")),
		"@apollo/server":           hs(api("graphql")),
		"apollo-server":            hs(api("graphql")),
		"@grpc/grpc-js":            hs(api("grpc")),
		"@trpc/server":             hs(hint{attr.APIStyle, "trpc", 0.9}),
		"ws":                       rt("websocket"),
		"socket.io":                rt("socketio"),
		"socket.io-client":         rt("socketio"),
		"simple-peer":              rt("webrtc"),
		"@opentelemetry/api":       hs(obs("standard")),
		"@opentelemetry/sdk-node":  hs(obs("standard")),
		"prom-client":              hs(obs("basic")),
		"pino":                     hs(hint{attr.Observability, "basic", 0.5}),
		"winston":                  hs(hint{attr.Observability, "basic", 0.5}),
		"@sentry/node":             hs(obs("basic")),
		"jest":                     hs(tst("basic")),
		"vitest":                   hs(tst("basic")),
		"mocha":                    hs(tst("basic")),
		"@playwright/test":         hs(tst("standard")),
		"cypress":                  hs(tst("standard")),
		"@stryker-mutator/core":    mut("stryker"),
		"serverless":               hs(hint{attr.Infra, "serverless", 0.8}),
		"typescript":               hs(hint{attr.Language, "typescript", 0.9}),
	},
	EcosystemGo: {
		"github.com/gin-gonic/gin":            hs(fw("gin")),
		"github.com/labstack/echo":            hs(fw("echo")),
		"github.com/gofiber/fiber":            hs(fw("fiber")),
		"github.com/go-chi/chi":               hs(fw("chi")),
		"gorm.io/gorm":                        hs(orm("gorm")),
		"entgo.io/ent":                        hs(orm("ent")),
		"github.com/jmoiron/sqlx":             hs(orm("sqlx")),
		"github.com/jackc/pgx":                hs(db("postgres")),
		"github.com/lib/pq":                   hs(db("postgres")),
		"gorm.io/driver/postgres":             hs(db("postgres")),
		"github.com/go-sql-driver/mysql":      hs(db("mysql")),
		"gorm.io/driver/mysql":                hs(db("mysql")),
		"modernc.org/sqlite":                  hs(db("sqlite")),
		"github.com/mattn/go-sqlite3":         hs(db("sqlite")),
		"go.mongodb.org/mongo-driver":         hs(db("mongodb")),
		"github.com/redis/go-redis":           hs(hint{attr.Database, "redis", 0.7}),
		"github.com/go-redis/redis":           hs(hint{attr.Database, "redis", 0.7}),
		"google.golang.org/grpc":              hs(api("grpc")),
		"connectrpc.com/connect":              hs(api("grpc")),
		"github.com/99designs/gqlgen":         hs(api("graphql")),
		"github.com/graphql-go/graphql":       hs(api("graphql")),
		"github.com/gorilla/websocket":        rt("websocket"),
		"nhooyr.io/websocket":                 rt("websocket"),
		"github.com/coder/websocket":          rt("websocket"),
		"github.com/pion/webrtc":              rt("webrtc"),
		"go.opentelemetry.io/otel":            hs(obs("standard")),
		"github.com/prometheus/client_golang": hs(obs("basic")),
		"github.com/stretchr/testify":         hs(tst("basic")),
		"github.com/onsi/ginkgo":              hs(tst("basic")),
		"github.com/avito-tech/go-mutesting":  mut("go-mutesting"),
		"github.com/aws/aws-lambda-go":        hs(hint{attr.Infra, "serverless", 0.8}),
	},
	EcosystemPyPI: {
		"django":              hs(fw("django"), hint{attr.ORM, "django-orm", 0.7}),
		"flask":               hs(fw("flask")),
		"fastapi":             hs(fw("fastapi")),
		"sqlalchemy":          hs(orm("sqlalchemy")),
		"psycopg":             hs(db("postgres")),
		"psycopg2":            hs(db("postgres")),
		"psycopg2-binary":     hs(db("postgres")),
		"asyncpg":             hs(db("postgres")),
		"pymysql":             hs(db("mysql")),
		"mysqlclient":         hs(db("mysql")),
		"pymongo":             hs(db("mongodb")),
		"motor":               hs(db("mongodb")),
		"redis":               hs(hint{attr.Database, "redis", 0.7}),
		"graphene":            hs(api("graphql")),
		"strawberry-graphql":  hs(api("graphql")),
		"ariadne":             hs(api("graphql")),
		"grpcio":              hs(api("grpc")),
		"djangorestframework": hs(api("rest")),
		"websockets":          rt("websocket"),
		"channels":            rt("websocket"),
		"python-socketio":     rt("socketio"),
		"opentelemetry-api":   hs(obs("standard")),
		"opentelemetry-sdk":   hs(obs("standard")),
		"prometheus-client":   hs(obs("basic")),
		"pytest":              hs(tst("basic")),
		"hypothesis":          hs(tst("standard")),
		"mutmut":              mut("mutmut"),
	},
	EcosystemComposer: {
		"laravel/framework":        hs(fw("laravel"), hint{attr.ORM, "eloquent", 0.7}),
		"symfony/framework-bundle": hs(fw("symfony")),
		"doctrine/orm":             hs(orm("doctrine")),
		"predis/predis":            hs(hint{attr.Database, "redis", 0.7}),
		"webonyx/graphql-php":      hs(api("graphql")),
		"nuwave/lighthouse":        hs(api("graphql")),
		"cboden/ratchet":           rt("websocket"),
		"open-telemetry/sdk":       hs(obs("standard")),
		"phpunit/phpunit":          hs(tst("basic")),
		"pestphp/pest":             hs(tst("basic")),
		"infection/infection":      mut("infection"),
	},
	EcosystemCargo: {
		"actix-web":         hs(fw("actix")),
		"axum":              hs(fw("axum")),
		"diesel":            hs(orm("diesel")),
		"sqlx":              hs(orm("sqlx")),
		"sea-orm":           hs(orm("sea-orm")),
		"tokio-postgres":    hs(db("postgres")),
		"postgres":          hs(db("postgres")),
		"rusqlite":          hs(db("sqlite")),
		"mongodb":           hs(db("mongodb")),
		"redis":             hs(hint{attr.Database, "redis", 0.7}),
		"tonic":             hs(api("grpc")),
		"async-graphql":     hs(api("graphql")),
		"juniper":           hs(api("graphql")),
		"tungstenite":       rt("websocket"),
		"tokio-tungstenite": rt("websocket"),
		"opentelemetry":     hs(obs("standard")),
		"prometheus":        hs(obs("basic")),
		"proptest":          hs(tst("standard")),
	},
	EcosystemGem: {
		"rails":             hs(fw("rails"), hint{attr.ORM, "activerecord", 0.7}),
		"sinatra":           hs(fw("sinatra")),
		"pg":                hs(db("postgres")),
		"mysql2":            hs(db("mysql")),
		"sqlite3":           hs(db("sqlite")),
		"mongoid":           hs(db("mongodb")),
		"redis":             hs(hint{attr.Database, "redis", 0.7}),
		"graphql":           hs(api("graphql")),
		"grpc":              hs(api("grpc")),
		"actioncable":       rt("websocket"),
		"opentelemetry-sdk": hs(obs("standard")),
		"rspec":             hs(tst("basic")),
		"rspec-rails":       hs(tst("basic")),
		"minitest":          hs(tst("basic")),
	},
	EcosystemMaven: {
		"org.springframework.boot:spring-boot-starter-parent":    hs(fw("spring")),
		"org.springframework.boot:spring-boot-starter-web":       hs(fw("spring")),
		"org.springframework.boot:spring-boot-starter-webflux":   hs(fw("spring")),
		"org.springframework.boot:spring-boot-starter-data-jpa":  hs(hint{attr.ORM, "hibernate", 0.8}),
		"org.springframework.boot:spring-boot-starter-graphql":   hs(api("graphql")),
		"org.springframework.boot:spring-boot-starter-websocket": rt("websocket"),
		"org.hibernate:hibernate-core":                           hs(orm("hibernate")),
		"org.hibernate.orm:hibernate-core":                       hs(orm("hibernate")),
		"org.postgresql:postgresql":                              hs(db("postgres")),
		"mysql:mysql-connector-java":                             hs(db("mysql")),
		"com.mysql:mysql-connector-j":                            hs(db("mysql")),
		"org.mongodb:mongodb-driver-sync":                        hs(db("mongodb")),
		"redis.clients:jedis":                                    hs(hint{attr.Database, "redis", 0.7}),
		"io.lettuce:lettuce-core":                                hs(hint{attr.Database, "redis", 0.7}),
		"io.grpc:grpc-stub":                                      hs(api("grpc")),
		"com.graphql-java:graphql-java":                          hs(api("graphql")),
		"io.opentelemetry:opentelemetry-api":                     hs(obs("standard")),
		"io.micrometer:micrometer-registry-prometheus":           hs(obs("basic")),
		"junit:junit":                                            hs(tst("basic")),
		"org.junit.jupiter:junit-jupiter":                        hs(tst("basic")),
		"org.pitest:pitest-maven":                                mut("pitest"),
		// Gradle plugin ids.
		"org.springframework.boot":                               hs(fw("spring")),
		"info.solidsoft.pitest":                                  mut("pitest"),
		"org.jetbrains.kotlin.jvm":                               hs(hint{attr.Language, "kotlin", 0.9}),
	},
	EcosystemPub: {
		"flutter":            hs(fw("flutter")),
		"sqflite":            hs(db("sqlite")),
		"web_socket_channel": rt("websocket"),
		"test":               hs(tst("basic")),
		"flutter_test":       hs(tst("basic")),
	},
	EcosystemNuGet: {
		"microsoft.entityframeworkcore":           hs(orm("entity-framework")),
		"npgsql":                                  hs(db("postgres")),
		"npgsql.entityframeworkcore.postgresql":   hs(db("postgres")),
		"microsoft.entityframeworkcore.sqlserver": hs(db("sqlserver")),
		"microsoft.data.sqlclient":                hs(db("sqlserver")),
		"mongodb.driver":                          hs(db("mongodb")),
		"stackexchange.redis":                     hs(hint{attr.Database, "redis", 0.7}),
		"grpc.aspnetcore":                         hs(api("grpc")),
		"hotchocolate.aspnetcore":                 hs(api("graphql")),
		"microsoft.aspnetcore.signalr":            rt("websocket"),
		"opentelemetry":                           hs(obs("standard")),
		"xunit":                                   hs(tst("basic")),
		"nunit":                                   hs(tst("basic")),
		"mstest.testframework":                    hs(tst("basic")),
	},
	EcosystemDocker: {
		"postgres":                       hs(db("postgres")),
		"postgis/postgis":                hs(db("postgres")),
		"mysql":                          hs(db("mysql")),
		"mariadb":                        hs(db("mysql")),
		"mongo":                          hs(db("mongodb")),
		"redis":                          hs(hint{attr.Database, "redis", 0.6}),
		"mcr.microsoft.com/mssql/server": hs(db("sqlserver")),
		"amazon/dynamodb-local":          hs(db("dynamodb")),
		"otel/opentelemetry-collector":   hs(obs("standard")),
		"jaegertracing/all-in-one":       hs(obs("standard")),
		"prom/prometheus":                hs(obs("basic")),
	},
}

// lookupDependency returns the hints for a package.
//
// Go module paths also match by prefix to cover major version suffixes
// and subpackages.
func lookupDependency(eco Ecosystem, name string) []hint {
	table := dependencyHints[eco]
	name = normalizePackage(eco, name)

	if h, ok := table[name]; ok {
		return h
	}

	if eco == EcosystemGo {
		for p := name; p != "."; p = parentPath(p) {
			if h, ok := table[p]; ok {
				return h
			}
		}
	}

	return nil
}

func parentPath(p string) string {
	i := strings.LastIndex(p, "/")
	if i < 0 {
		return "."
	}

	return p[:i]
}

func normalizePackage(eco Ecosystem, name string) string {
	name = strings.TrimSpace(name)

	switch eco {
	case EcosystemPyPI:
		return strings.ReplaceAll(strings.ToLower(name), "_", "-")

	case EcosystemNuGet, EcosystemComposer:
		return strings.ToLower(name)

	case EcosystemDocker:
		// Strip tag and digest, and the implicit library namespace.
		if i := strings.IndexByte(name, '@'); i >= 0 {
			name = name[:i]
		}

		if i := strings.LastIndexByte(name, ':'); i > strings.LastIndexByte(name, '/') {
			name = name[:i]
		}

		name = strings.TrimPrefix(name, "docker.io/")

		return strings.TrimPrefix(name, "library/")
	}

	return name
}
