// This file is part of Sheet Server.
//
// Sheet Server is free software: you can redistribute it and/or modify it under the
// terms of the GNU Affero General Public License as published by the Free Software Foundation,
// either version 3 of the License, or (at your option) any later version.
//
// Sheet Server is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU General Public License along with Sheet Server.
// If not, see https://www.gnu.org/licenses/agpl-3.0.html
package main

import (
	"os"

	"acb/sheet-server/users"
	"github.com/spf13/pflag"
)

type config struct {
	Addr           string
	DataDir        string
	DatabaseURL    string
	DatabaseDriver string
}

func getenv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

// bindFlags registers the serve flags, defaulting each one to its
// environment variable.
func (c *config) bindFlags(flags *pflag.FlagSet) {
	flags.StringVar(&c.Addr, "addr", getenv("LISTEN_ADDR", ":5000"), "Listen address (LISTEN_ADDR)")
	flags.StringVar(&c.DataDir, "data-dir", getenv("DATA_DIR", "data"), "Directory for uploaded files (DATA_DIR)")
	flags.StringVar(&c.DatabaseURL, "database-url", getenv("DATABASE_URL", ""), "Postgres URL for user accounts (DATABASE_URL)")
	flags.StringVar(&c.DatabaseDriver, "database-driver", getenv("DATABASE_DRIVER", users.DefaultDriver), "pgx or postgres (DATABASE_DRIVER)")
}
