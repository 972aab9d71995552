package vm

import (
	"bytes"
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"
)

// ImageVersion is the current image format version.
// Increment when making incompatible changes to Code's encoding.
const ImageVersion uint16 = 1

// ImageMagic prefixes every image file.
var ImageMagic = []byte{'L', 'E', 'A', 'P'}

// cborEncMode uses canonical mode so equal code objects encode to equal
// bytes (the store keys rely on this).
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("vm: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

type imageFile struct {
	Version uint16  `cbor:"version"`
	Codes   []*Code `cbor:"codes"`
}

// MarshalCode serializes a code object to CBOR bytes.
func MarshalCode(c *Code) ([]byte, error) {
	return cborEncMode.Marshal(c)
}

// UnmarshalCode deserializes a code object from CBOR bytes.
func UnmarshalCode(data []byte) (*Code, error) {
	var c Code
	if err := cbor.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("vm: unmarshal code: %w", err)
	}
	return &c, nil
}

// EncodeImage serializes a list of code objects into image bytes.
func EncodeImage(codes []*Code) ([]byte, error) {
	body, err := cborEncMode.Marshal(imageFile{Version: ImageVersion, Codes: codes})
	if err != nil {
		return nil, fmt.Errorf("vm: encode image: %w", err)
	}
	return append(append([]byte{}, ImageMagic...), body...), nil
}

// DecodeImage parses image bytes produced by EncodeImage.
func DecodeImage(data []byte) ([]*Code, error) {
	if !IsImage(data) {
		return nil, fmt.Errorf("vm: decode image: bad magic")
	}
	var img imageFile
	if err := cbor.Unmarshal(data[len(ImageMagic):], &img); err != nil {
		return nil, fmt.Errorf("vm: decode image: %w", err)
	}
	if img.Version != ImageVersion {
		return nil, fmt.Errorf("vm: decode image: unsupported version %d (want %d)", img.Version, ImageVersion)
	}
	return img.Codes, nil
}

// IsImage reports whether data starts with the image magic.
func IsImage(data []byte) bool {
	return bytes.HasPrefix(data, ImageMagic)
}

// WriteImage writes code objects to an image file.
func WriteImage(path string, codes []*Code) error {
	data, err := EncodeImage(codes)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("vm: write image %s: %w", path, err)
	}
	return nil
}

// ReadImage reads code objects from an image file.
func ReadImage(path string) ([]*Code, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("vm: read image %s: %w", path, err)
	}
	return DecodeImage(data)
}
