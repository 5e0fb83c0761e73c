package orchestrator

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/oklog/ulid/v2"
)

// AssetDir is where ingested images land in the project.
const AssetDir = "public/assets/"

var ErrInvalidImage = errors.New("attachment is not a supported image")

// Asset is an image normalised to an inline data URL.
type Asset struct {
	Path    string
	DataURL string
	MIME    string
}

// NormalizeImage accepts a data URL or bare base64 and re-encodes it as a data
// URL whose media type is sniffed from the bytes, not trusted from the input.
func NormalizeImage(src string) (Asset, error) {
	payload := strings.TrimSpace(src)
	if strings.HasPrefix(payload, "data:") {
		i := strings.Index(payload, ",")
		if i < 0 || !strings.HasSuffix(payload[:i], ";base64") {
			return Asset{}, fmt.Errorf("%w: expected a base64 data URL", ErrInvalidImage)
		}
		payload = payload[i+1:]
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		if raw, err = base64.RawStdEncoding.DecodeString(payload); err != nil {
			return Asset{}, fmt.Errorf("%w: %v", ErrInvalidImage, err)
		}
	}
	return ImageFromBytes(raw)
}

// ImageFromBytes sniffs raw bytes and names a fresh asset path for them.
func ImageFromBytes(raw []byte) (Asset, error) {
	mt := mimetype.Detect(raw)
	if !strings.HasPrefix(mt.String(), "image/") {
		return Asset{}, fmt.Errorf("%w: detected %s", ErrInvalidImage, mt.String())
	}
	mime := strings.SplitN(mt.String(), ";", 2)[0]
	return Asset{
		Path:    AssetDir + strings.ToLower(ulid.Make().String()) + mt.Extension(),
		DataURL: "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(raw),
		MIME:    mime,
	}, nil
}
