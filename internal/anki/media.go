package anki

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
)

// MediaFile is one media payload extracted from card HTML. Filenames are
// unique within an export; the bytes are written once into the archive and
// never mutated afterwards.
type MediaFile struct {
	Filename string
	Data     []byte
	MIME     string
}

// mimeExt maps MIME subtypes whose conventional file extension differs from
// the subtype itself.
var mimeExt = map[string]string{
	"jpeg":      "jpg",
	"svg+xml":   "svg",
	"mpeg":      "mp3",
	"x-wav":     "wav",
	"quicktime": "mov",
}

// extractor scans card HTML for data-URI media, externalizes each payload
// as a standalone file, and rewrites the HTML to reference the generated
// filename. One extractor serves a whole export so the sequence counter —
// and therefore filenames — never collide across cards.
type extractor struct {
	logger        *slog.Logger
	baseTS        int64
	seq           int
	maxVideoBytes int64
	files         []MediaFile
}

func newExtractor(logger *slog.Logger, baseTS int64, maxVideoBytes int64) *extractor {
	return &extractor{logger: logger, baseTS: baseTS, maxVideoBytes: maxVideoBytes}
}

// rewrite returns html with script/style stripped and all extractable
// data-URI media replaced by file references. Remote http(s) URLs and
// already-local references pass through unchanged. Content without data
// URIs comes back byte-identical.
func (x *extractor) rewrite(html string) string {
	out := scriptRe.ReplaceAllString(html, "")
	out = styleRe.ReplaceAllString(out, "")
	out = audioElemRe.ReplaceAllStringFunc(out, x.rewriteAudio)
	out = videoTagRe.ReplaceAllStringFunc(out, x.rewriteVideo)
	out = imgTagRe.ReplaceAllStringFunc(out, x.rewriteImg)
	return out
}

// rewriteImg replaces a data-URI src on an <img> tag with an extracted
// filename. Anything undecodable leaves the tag untouched.
func (x *extractor) rewriteImg(tag string) string {
	src, ok := dataURISrc(tag)
	if !ok {
		return tag
	}
	data, mime, err := decodeDataURI(src)
	if err != nil {
		x.logger.Warn("media: skipping undecodable image", slog.String("error", err.Error()))
		return tag
	}
	name := x.record("img", mime, "png", data)
	return replaceSrc(tag, src, name)
}

// rewriteAudio replaces a whole <audio> element (including nested <source>
// children) with Anki's [sound:<filename>] reference. Anki's card renderer
// does not reliably render <audio> tags inside fields, so the plaintext
// form is required.
func (x *extractor) rewriteAudio(elem string) string {
	src, ok := dataURISrc(elem)
	if !ok {
		return elem
	}
	data, mime, err := decodeDataURI(src)
	if err != nil {
		x.logger.Warn("media: skipping undecodable audio", slog.String("error", err.Error()))
		return elem
	}
	name := x.record("audio", mime, "mp3", data)
	return "[sound:" + name + "]"
}

// rewriteVideo replaces a data-URI src on a <video> tag and adds a controls
// attribute so the video is playable standalone inside the field. Payloads
// above maxVideoBytes are left inline.
func (x *extractor) rewriteVideo(tag string) string {
	src, ok := dataURISrc(tag)
	if !ok {
		return tag
	}
	data, mime, err := decodeDataURI(src)
	if err != nil {
		x.logger.Warn("media: skipping undecodable video", slog.String("error", err.Error()))
		return tag
	}
	if x.maxVideoBytes > 0 && int64(len(data)) > x.maxVideoBytes {
		x.logger.Warn("media: video exceeds inline limit, leaving as-is",
			slog.Int("size", len(data)), slog.Int64("limit", x.maxVideoBytes))
		return tag
	}
	name := x.record("video", mime, "mp4", data)
	tag = replaceSrc(tag, src, name)
	if !controlsRe.MatchString(tag) {
		tag = strings.TrimSuffix(tag, ">") + " controls>"
	}
	return tag
}

// record registers a payload under a fresh collision-free filename of the
// form <kind>_<timestamp>_<seq>.<ext> and returns the filename.
func (x *extractor) record(kind, mime, defaultExt string, data []byte) string {
	ext := extensionFor(mime, defaultExt)
	name := fmt.Sprintf("%s_%d_%d.%s", kind, x.baseTS, x.seq, ext)
	x.seq++
	x.files = append(x.files, MediaFile{Filename: name, Data: data, MIME: mime})
	return name
}

// mediaFiles returns every payload recorded so far, in extraction order.
func (x *extractor) mediaFiles() []MediaFile {
	return x.files
}

// dataURISrc returns the first src attribute value within fragment that is
// a data: URI. For <audio> elements this also covers nested <source> tags.
func dataURISrc(fragment string) (string, bool) {
	for _, m := range srcAttrRe.FindAllStringSubmatch(fragment, -1) {
		if strings.HasPrefix(m[1], "data:") {
			return m[1], true
		}
	}
	return "", false
}

// replaceSrc swaps the exact data-URI value for the generated filename.
func replaceSrc(fragment, oldSrc, filename string) string {
	return strings.Replace(fragment, oldSrc, filename, 1)
}

// decodeDataURI parses a data:[<mediatype>][;base64],<data> URI and returns
// the decoded payload and its MIME type.
func decodeDataURI(uri string) ([]byte, string, error) {
	rest := strings.TrimPrefix(uri, "data:")
	commaIdx := strings.Index(rest, ",")
	if commaIdx < 0 {
		return nil, "", fmt.Errorf("invalid data URI: missing comma separator")
	}

	meta := rest[:commaIdx]
	encoded := rest[commaIdx+1:]

	if !strings.Contains(meta, ";base64") {
		return nil, "", fmt.Errorf("only base64 data URIs are supported")
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, "", fmt.Errorf("invalid base64 data: %w", err)
		}
	}

	mime := strings.Split(strings.TrimSuffix(meta, ";base64"), ";")[0]
	return data, mime, nil
}

// extensionFor derives a file extension from a MIME type, falling back to
// defaultExt when the subtype is missing or unusable.
func extensionFor(mime, defaultExt string) string {
	_, subtype, ok := strings.Cut(mime, "/")
	if !ok || subtype == "" {
		return defaultExt
	}
	if ext, mapped := mimeExt[subtype]; mapped {
		return ext
	}
	if !extRe.MatchString(subtype) {
		return defaultExt
	}
	return subtype
}
