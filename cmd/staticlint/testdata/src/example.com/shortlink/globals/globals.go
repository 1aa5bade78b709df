package globals

import (
	"database/sql"

	"example.com/shortlink/internal/cache"
)

var db *sql.DB // want "глобальная переменная db"

var (
	shared cache.Cache    // want "глобальная переменная shared"
	local  *cache.Memory  // want "глобальная переменная local"
	opts   cache.Options
	name   = "shortlink"
)

func use() {
	var conn *sql.DB
	_ = conn
	_, _, _, _, _ = db, shared, local, opts, name
}
