// Package server hosts the Fiber HTTP service that exposes a single cache
// engine: request-id and access-log middleware, panic recovery, and the
// /cache, /touch and /-/entries handlers. Diagnostics routes live in the
// routes subpackage so they can be mounted on any Fiber app. Dependencies
// are passed explicitly through AppOptions; the package holds no globals.
package server
