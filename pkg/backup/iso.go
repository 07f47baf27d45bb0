package backup

import (
	"archive/tar"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Fixed layout inside every ISO artifact.
const (
	isoMetadataDir  = "metadata"
	isoDataDir      = "data"
	isoScriptsDir   = "scripts"
	isoSignatureDir = "metadata/digital_signature"
	isoManifestName = "metadata/manifest.json"
)

// IsoMetadata is the parsed metadata/manifest.json of one ISO artifact
type IsoMetadata struct {
	Label         string    `json:"label"`
	ComponentType string    `json:"component_type,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	Encryption    string    `json:"encryption,omitempty"`
	Files         int       `json:"files"`
}

// IsoManager produces and inspects ISO-shaped backup artifacts. The
// artifact is a tar container with the fixed metadata/, data/ and
// scripts/ layout; node agents produce the same shape.
type IsoManager struct{}

// NewIsoManager creates an ISO manager
func NewIsoManager() *IsoManager {
	return &IsoManager{}
}

// CreateIsoFromDirectory materialises an ISO artifact from a source
// directory. The source tree is placed under data/; metadata and the
// script skeleton are generated. encryption is recorded in metadata
// only; payload encryption is the node agent's concern.
func (m *IsoManager) CreateIsoFromDirectory(srcDir, outPath, label, encryption string) error {
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", outPath, err)
	}
	defer f.Close()

	tw := tar.NewWriter(f)
	defer tw.Close()

	for _, dir := range []string{isoMetadataDir, isoDataDir,
		isoScriptsDir + "/recovery", isoScriptsDir + "/validation", isoScriptsDir + "/transformation"} {
		if err := writeTarDir(tw, dir); err != nil {
			return err
		}
	}

	files := 0
	err = filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		name := filepath.ToSlash(filepath.Join(isoDataDir, rel))
		if info.IsDir() {
			return writeTarDir(tw, name)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		files++
		return writeTarFile(tw, name, data, 0644)
	})
	if err != nil {
		return fmt.Errorf("failed to archive %s: %w", srcDir, err)
	}

	meta := IsoMetadata{
		Label:      label,
		CreatedAt:  time.Now().UTC(),
		Encryption: encryption,
		Files:      files,
	}
	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode iso metadata: %w", err)
	}
	if err := writeTarFile(tw, isoManifestName, metaJSON, 0644); err != nil {
		return err
	}

	return nil
}

// ExtractIsoToDirectory unpacks an ISO artifact into a directory
func (m *IsoManager) ExtractIsoToDirectory(isoPath, outDir string) error {
	f, err := os.Open(isoPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", isoPath, err)
	}
	defer f.Close()

	tr := tar.NewReader(f)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", isoPath, err)
		}

		name := filepath.Clean(hdr.Name)
		if strings.HasPrefix(name, "..") || filepath.IsAbs(name) {
			return fmt.Errorf("refusing entry %q escaping extraction root", hdr.Name)
		}
		dst := filepath.Join(outDir, name)

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(dst, 0755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
				return err
			}
			out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode))
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return err
			}
			out.Close()
		}
	}
}

// IsoSize returns the on-disk length of an ISO artifact
func (m *IsoManager) IsoSize(isoPath string) (int64, error) {
	info, err := os.Stat(isoPath)
	if err != nil {
		return 0, fmt.Errorf("failed to stat %s: %w", isoPath, err)
	}
	return info.Size(), nil
}

// ReadIsoMetadata streams the archive and parses metadata/manifest.json
func (m *IsoManager) ReadIsoMetadata(isoPath string) (*IsoMetadata, error) {
	f, err := os.Open(isoPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", isoPath, err)
	}
	defer f.Close()

	tr := tar.NewReader(f)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", isoPath, err)
		}
		if filepath.ToSlash(filepath.Clean(hdr.Name)) != isoManifestName {
			continue
		}
		var meta IsoMetadata
		if err := json.NewDecoder(tr).Decode(&meta); err != nil {
			return nil, fmt.Errorf("corrupt iso metadata in %s: %w", isoPath, err)
		}
		return &meta, nil
	}
	return nil, fmt.Errorf("%s has no %s", isoPath, isoManifestName)
}

func writeTarDir(tw *tar.Writer, name string) error {
	return tw.WriteHeader(&tar.Header{
		Name:     name + "/",
		Typeflag: tar.TypeDir,
		Mode:     0755,
		ModTime:  time.Now(),
	})
}

func writeTarFile(tw *tar.Writer, name string, data []byte, mode int64) error {
	if err := tw.WriteHeader(&tar.Header{
		Name:    name,
		Size:    int64(len(data)),
		Mode:    mode,
		ModTime: time.Now(),
	}); err != nil {
		return err
	}
	_, err := tw.Write(data)
	return err
}
