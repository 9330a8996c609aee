package crypto

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/AlexZinkM/sovereign-ledger/internal/model"
)

// VaultFileExt is the required extension of vault files.
const VaultFileExt = ".vault"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// FileExistsError is an error when file already exists and is not empty
type FileExistsError struct {
	Message string
}

func (e *FileExistsError) Error() string {
	return e.Message
}

// IsFileExistsError checks if error is FileExistsError
func IsFileExistsError(err error) bool {
	var target *FileExistsError
	return errors.As(err, &target)
}

// WriteVaultFile writes a new vault file. It refuses to overwrite a non-empty file.
func WriteVaultFile(filePath string, vault *model.VaultFile) error {
	if filepath.Ext(filePath) != VaultFileExt {
		return fmt.Errorf("file must have %s extension", VaultFileExt)
	}

	// Check file existence
	if fileInfo, err := os.Stat(filePath); err == nil && fileInfo.Size() > 0 {
		return &FileExistsError{Message: "file is not empty"}
	}

	return writeVaultFile(filePath, vault)
}

// ReplaceVaultFile atomically replaces an existing vault file, used on rotation and re-keying.
func ReplaceVaultFile(filePath string, vault *model.VaultFile) error {
	if filepath.Ext(filePath) != VaultFileExt {
		return fmt.Errorf("file must have %s extension", VaultFileExt)
	}

	tmp := filePath + ".tmp"
	if err := writeVaultFile(tmp, vault); err != nil {
		return err
	}
	if err := os.Rename(tmp, filePath); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace vault file: %w", err)
	}
	return nil
}

func writeVaultFile(filePath string, vault *model.VaultFile) error {
	fileData, err := json.MarshalIndent(vault, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal vault file: %w", err)
	}

	// Add UTF-8 BOM for proper display in Windows
	fileDataWithBOM := append(append([]byte{}, utf8BOM...), fileData...)

	if err := os.WriteFile(filePath, fileDataWithBOM, 0600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// VaultFileExists reports whether a non-empty vault file is present.
// It lets callers tell "no vault" apart from a failed open.
func VaultFileExists(filePath string) bool {
	fileInfo, err := os.Stat(filePath)
	return err == nil && fileInfo.Size() > 0
}

// ReadVaultFile reads a vault file without decrypting it.
func ReadVaultFile(filePath string) (*model.VaultFile, error) {
	fileInfo, err := os.Stat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("file does not exist")
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	if fileInfo.Size() == 0 {
		return nil, errors.New("file is empty")
	}

	fileData, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	// Skip UTF-8 BOM if present
	if len(fileData) >= 3 && fileData[0] == 0xEF && fileData[1] == 0xBB && fileData[2] == 0xBF {
		fileData = fileData[3:]
	}

	var vault model.VaultFile
	if err := json.Unmarshal(fileData, &vault); err != nil {
		return nil, fmt.Errorf("failed to unmarshal vault file: %w", err)
	}
	return &vault, nil
}
