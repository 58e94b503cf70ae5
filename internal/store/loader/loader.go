// Package loader registers store drivers via blank imports.
//
// Usage in main.go:
//
//	import _ "github.com/MahdiBaghbani/busyday-go/internal/store/loader"
package loader

import (
	_ "github.com/MahdiBaghbani/busyday-go/internal/store/memory"
	_ "github.com/MahdiBaghbani/busyday-go/internal/store/mysql"
	_ "github.com/MahdiBaghbani/busyday-go/internal/store/sqlite"
)
