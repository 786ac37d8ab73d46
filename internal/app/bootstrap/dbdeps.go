// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"github.com/dalemusser/stayhome/internal/app/store/dbset"
	"github.com/dalemusser/stayhome/internal/app/system/mailer"
	"github.com/dalemusser/waffle/pantry/storage"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds database and backend dependencies for StayHome.
//
// It is created in ConnectDB and passed to EnsureSchema, Startup,
// BuildHandler and Shutdown.
type DBDeps struct {
	// Clients holds one client per distinct Mongo URI. When all three
	// databases share a URI there is a single client and cross-database
	// writes run in one transaction.
	Clients []*mongo.Client
	DBs     dbset.Set

	// FileStorage holds uploaded images.
	FileStorage storage.Store

	// Mailer sends OTPs, reset links and notifications.
	Mailer mailer.Sender
}
