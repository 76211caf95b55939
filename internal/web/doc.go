package web

// Package web serves the drum charter over HTTP: a JSON API for submitting
// audio and editing road maps, plus the embedded single-page editor that
// talks to it. Handlers never touch pipeline internals; everything goes
// through the charter service, which hands out snapshots safe to serialize.
