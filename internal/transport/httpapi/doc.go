// Package httpapi exposes the chores service over a JSON REST API built on chi.
package httpapi
