package prover

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/consensys/gnark/backend/groth16"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/fxamacker/cbor/v2"
)

var errArtifactsNotFound = errors.New("artifacts not found")

// artifactsMeta is stored next to the artifact files and checked on load.
type artifactsMeta struct {
	Key         string    `cbor:"key"`
	Curve       string    `cbor:"curve"`
	Constraints int       `cbor:"constraints"`
	KeyHash     []byte    `cbor:"keyHash"`
	CreatedAt   time.Time `cbor:"createdAt"`
}

// artifactsError gives context to disk cache failures.
type artifactsError struct {
	Op   string
	Type string
	Path string
	Err  error
}

func (e *artifactsError) Error() string {
	return fmt.Sprintf("artifacts %s %s at %s: %v", e.Op, e.Type, e.Path, e.Err)
}

func (e *artifactsError) Unwrap() error { return e.Err }

func wrapArtifactsError(op, typ, path string, err error) error {
	if err == nil {
		return nil
	}
	return &artifactsError{Op: op, Type: typ, Path: path, Err: err}
}

// artifactsFiles resolves the paths of the files of a key. Keys are hashed so
// any string can be used as a key.
type artifactsFiles struct {
	dir  string
	name string
}

func newArtifactsFiles(dir, key string) artifactsFiles {
	return artifactsFiles{dir: dir, name: crypto.Keccak256Hash([]byte(key)).Hex()[2:18]}
}

func (f artifactsFiles) path(ext string) string {
	return filepath.Join(f.dir, f.name+ext)
}

func writeToFile(path string, writer func(io.Writer) error) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return writer(file)
}

func readFromFile(path string, reader func(io.Reader) error) (err error) {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return reader(file)
}

// writeArtifacts stores the constraint system, both keys and the metadata.
// The metadata is written last, so a partially written set is never loaded.
func writeArtifacts(dir string, a *Artifacts) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return wrapArtifactsError("create", "directory", dir, err)
	}
	files := newArtifactsFiles(dir, a.Key)
	if err := writeToFile(files.path(".ccs"), func(w io.Writer) error {
		_, err := a.CCS.WriteTo(w)
		return err
	}); err != nil {
		return wrapArtifactsError("write", "constraint system", files.path(".ccs"), err)
	}
	if err := writeToFile(files.path(".pk"), func(w io.Writer) error {
		_, err := a.ProvingKey.WriteRawTo(w)
		return err
	}); err != nil {
		return wrapArtifactsError("write", "proving key", files.path(".pk"), err)
	}
	if err := writeToFile(files.path(".vk"), func(w io.Writer) error {
		_, err := a.VerifyingKey.WriteRawTo(w)
		return err
	}); err != nil {
		return wrapArtifactsError("write", "verifying key", files.path(".vk"), err)
	}
	keyHash, err := VerifyingKeyHash(a.VerifyingKey)
	if err != nil {
		return err
	}
	meta := artifactsMeta{
		Key:         a.Key,
		Curve:       Curve.String(),
		Constraints: a.CCS.GetNbConstraints(),
		KeyHash:     keyHash,
		CreatedAt:   time.Now(),
	}
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return fmt.Errorf("create CBOR encoder: %w", err)
	}
	encoded, err := em.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal artifacts metadata: %w", err)
	}
	return wrapArtifactsError("write", "metadata", files.path(".meta.cbor"),
		os.WriteFile(files.path(".meta.cbor"), encoded, 0o644))
}

// readArtifacts loads the artifacts of key, returning errArtifactsNotFound
// when they were never written.
func readArtifacts(dir, key string) (*Artifacts, error) {
	files := newArtifactsFiles(dir, key)
	encoded, err := os.ReadFile(files.path(".meta.cbor"))
	if errors.Is(err, os.ErrNotExist) {
		return nil, errArtifactsNotFound
	}
	if err != nil {
		return nil, wrapArtifactsError("read", "metadata", files.path(".meta.cbor"), err)
	}
	var meta artifactsMeta
	if err := cbor.Unmarshal(encoded, &meta); err != nil {
		return nil, wrapArtifactsError("decode", "metadata", files.path(".meta.cbor"), err)
	}
	if meta.Key != key || meta.Curve != Curve.String() {
		return nil, fmt.Errorf("artifacts metadata mismatch: key %q curve %s", meta.Key, meta.Curve)
	}

	ccs := groth16.NewCS(Curve)
	if err := readFromFile(files.path(".ccs"), func(r io.Reader) error {
		_, err := ccs.ReadFrom(r)
		return err
	}); err != nil {
		return nil, wrapArtifactsError("read", "constraint system", files.path(".ccs"), err)
	}
	pk := groth16.NewProvingKey(Curve)
	if err := readFromFile(files.path(".pk"), func(r io.Reader) error {
		_, err := pk.UnsafeReadFrom(r)
		return err
	}); err != nil {
		return nil, wrapArtifactsError("read", "proving key", files.path(".pk"), err)
	}
	vk := groth16.NewVerifyingKey(Curve)
	if err := readFromFile(files.path(".vk"), func(r io.Reader) error {
		_, err := vk.UnsafeReadFrom(r)
		return err
	}); err != nil {
		return nil, wrapArtifactsError("read", "verifying key", files.path(".vk"), err)
	}
	keyHash, err := VerifyingKeyHash(vk)
	if err != nil {
		return nil, err
	}
	if string(keyHash) != string(meta.KeyHash) {
		return nil, fmt.Errorf("verifying key hash mismatch for %q", key)
	}
	return &Artifacts{Key: key, CCS: ccs, ProvingKey: pk, VerifyingKey: vk}, nil
}
