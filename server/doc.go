// Package server exposes the paper feed over HTTP as a small JSON API.
package server
