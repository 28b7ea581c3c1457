// Package anki builds Anki .apkg packages from in-memory decks.
//
// An .apkg file is a ZIP archive holding a SQLite database named
// collection.anki2, one file per extracted media item, and a "media"
// manifest mapping archive indexes to media filenames. The builder runs as
// a single linear pipeline per export call: extract media from card HTML,
// materialize the collection schema, insert rows, serialize the database,
// and assemble the archive. It holds no state between calls apart from the
// one-time engine availability probe.
package anki
