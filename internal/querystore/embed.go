package querystore

import (
	"embed"
	"io/fs"
)

//go:embed templates/*/*.sql
var templatesFS embed.FS

// Embedded returns the built-in templates rooted so that "<kind>/<name>.sql"
// resolves directly.
func Embedded() fs.FS {
	sub, err := fs.Sub(templatesFS, "templates")
	if err != nil {
		// templates/ is compiled in; Sub only fails on an invalid path.
		panic(err)
	}
	return sub
}
