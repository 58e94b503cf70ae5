// Package loader registers the built-in interceptors via blank imports.
package loader

import (
	_ "github.com/MahdiBaghbani/busyday-go/internal/interceptors/ratelimit"
)
