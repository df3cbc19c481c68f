// Package catalog maintains the local cache of downloadable images. The
// published catalog is fetched as JSON and stored in SQLite alongside the
// user's own registered image files and per-image download mirrors.
package catalog
