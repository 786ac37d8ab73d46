// internal/app/bootstrap/hooks.go
package bootstrap

import (
	"github.com/dalemusser/waffle/app"
)

// Hooks wires StayHome into the WAFFLE lifecycle. app.Run calls them in
// order, from configuration loading through graceful shutdown.
var Hooks = app.Hooks[AppConfig, DBDeps]{
	Name:           "stayhome",
	LoadConfig:     LoadConfig,     // load core + app config
	ValidateConfig: ValidateConfig, // Mongo URIs, database names, secrets
	ConnectDB:      ConnectDB,      // connect the three databases, storage, mailer
	EnsureSchema:   EnsureSchema,   // validators, indexes, system roles, seed admin
	Startup:        Startup,        // background cleanup jobs
	BuildHandler:   BuildHandler,   // router + middleware stack
	Shutdown:       Shutdown,       // stop jobs, disconnect MongoDB
}
