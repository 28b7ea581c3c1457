package anki

import (
	"archive/zip"
	"bytes"
	"compress/flate"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// collectionEntryName is the fixed database entry name Anki's importer
// looks for inside the archive.
const collectionEntryName = "collection.anki2"

// buildArchive assembles the final ZIP: the collection database, one entry
// per media file under its generated filename, and the "media" manifest
// mapping a zero-based string index to each filename in insertion order.
// The archive is downloaded once and stored, so maximum-ratio deflate is
// used throughout.
func buildArchive(collection []byte, media []MediaFile) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})

	w, err := zw.Create(collectionEntryName)
	if err != nil {
		return nil, fmt.Errorf("anki: create %s entry: %w", collectionEntryName, err)
	}
	if _, err := w.Write(collection); err != nil {
		return nil, fmt.Errorf("anki: write collection: %w", err)
	}

	for _, f := range media {
		w, err := zw.Create(f.Filename)
		if err != nil {
			return nil, fmt.Errorf("anki: create media entry %s: %w", f.Filename, err)
		}
		if _, err := w.Write(f.Data); err != nil {
			return nil, fmt.Errorf("anki: write media %s: %w", f.Filename, err)
		}
	}

	w, err = zw.Create("media")
	if err != nil {
		return nil, fmt.Errorf("anki: create media manifest: %w", err)
	}
	if _, err := w.Write(mediaManifest(media)); err != nil {
		return nil, fmt.Errorf("anki: write media manifest: %w", err)
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("anki: finalize archive: %w", err)
	}
	return buf.Bytes(), nil
}

// mediaManifest encodes {"0": filename, ...} with keys in the exact order
// the files were added to the archive. Built by hand because encoding/json
// sorts map keys.
func mediaManifest(media []MediaFile) []byte {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, f := range media {
		if i > 0 {
			b.WriteByte(',')
		}
		key, _ := json.Marshal(strconv.Itoa(i))
		name, _ := json.Marshal(f.Filename)
		b.Write(key)
		b.WriteByte(':')
		b.Write(name)
	}
	b.WriteByte('}')
	return b.Bytes()
}
