package update

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spoq-dev/spoq/internal/errtax"
)

// InstallConfig controls how Install replaces the running binary.
// The zero value targets the current executable, derives the backup
// path from it, and removes the staged file on success; it does not
// roll back on failure, since AutoRollback is false.
// DefaultInstallConfig enables rollback.
type InstallConfig struct {
	TargetPath         string
	BackupPath         string
	PreserveUpdateFile bool
	AutoRollback       bool
}

// DefaultInstallConfig returns the zero-config defaults: no custom
// paths, staged file removed after install, auto-rollback enabled.
func DefaultInstallConfig() InstallConfig {
	return InstallConfig{AutoRollback: true}
}

// InstallResult describes a successful installation.
type InstallResult struct {
	BinaryPath string
	BackupPath string
	Version    string
}

// backupPathFor appends ".backup" to the target's existing extension
// (or sets ".backup" outright if it has none), mirroring how the
// release server names rollback artifacts.
func backupPathFor(target string) string {
	ext := filepath.Ext(target)
	if ext == "" {
		return target + ".backup"
	}
	return target[:len(target)-len(ext)] + ext + ".backup"
}

// atomicCopy copies src to dst via a temp-file-then-rename so a
// partial write never corrupts dst.
func atomicCopy(src, dst string) error {
	tempPath := dst + ".tmp"

	in, err := os.Open(src)
	if err != nil {
		return errtax.ClassifyIOError(err, src, "read")
	}
	defer in.Close()

	out, err := os.Create(tempPath)
	if err != nil {
		return errtax.ClassifyIOError(err, tempPath, "create")
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tempPath)
		return errtax.ClassifyIOError(err, tempPath, "write")
	}
	if err := out.Close(); err != nil {
		os.Remove(tempPath)
		return errtax.ClassifyIOError(err, tempPath, "close")
	}

	if err := os.Rename(tempPath, dst); err != nil {
		os.Remove(tempPath)
		return errtax.ClassifyIOError(err, dst, "rename")
	}
	return nil
}

func setExecutablePermissions(path string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	if err := os.Chmod(path, 0o755); err != nil {
		return errtax.ClassifyIOError(err, path, "chmod")
	}
	return nil
}

func createBackup(target, backup string) error {
	return atomicCopy(target, backup)
}

func restoreBackup(backup, target string) error {
	if _, err := os.Stat(backup); errors.Is(err, os.ErrNotExist) {
		return errtax.NewBackupNotFound(backup)
	}
	if err := atomicCopy(backup, target); err != nil {
		return err
	}
	return setExecutablePermissions(target)
}

// Install replaces the running binary (or config.TargetPath) with
// the staged update at updatePath. It backs up the current binary
// first; on any failure during replacement or chmod, and with
// AutoRollback set, it restores the backup and returns
// InstallFailedRestored (or InstallFailedNoRestore if the restore
// itself fails).
func Install(updatePath, version string, config InstallConfig) (*InstallResult, error) {
	if _, err := os.Stat(updatePath); errors.Is(err, os.ErrNotExist) {
		return nil, errtax.NewUpdateFileNotFound(updatePath)
	}

	target := config.TargetPath
	if target == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, errtax.NewNoExecutablePath()
		}
		target = exe
	}

	backup := config.BackupPath
	if backup == "" {
		backup = backupPathFor(target)
	}

	if err := createBackup(target, backup); err != nil {
		return nil, err
	}

	installErr := performInstallation(updatePath, target, config)
	if installErr == nil {
		return &InstallResult{BinaryPath: target, BackupPath: backup, Version: version}, nil
	}

	if !config.AutoRollback {
		return nil, installErr
	}

	if restoreErr := restoreBackup(backup, target); restoreErr != nil {
		return nil, errtax.NewInstallFailedNoRestore(installErr.Error(), restoreErr.Error())
	}
	return nil, errtax.NewInstallFailedRestored(installErr.Error(), backup)
}

// performInstallation tries an atomic rename first (fast path, same
// filesystem); on failure (typically EXDEV) it falls back to
// atomicCopy, then removes the staged file unless told to preserve
// it.
func performInstallation(updatePath, target string, config InstallConfig) error {
	if err := os.Rename(updatePath, target); err == nil {
		return setExecutablePermissions(target)
	}

	if err := atomicCopy(updatePath, target); err != nil {
		return err
	}
	if err := setExecutablePermissions(target); err != nil {
		return err
	}
	if !config.PreserveUpdateFile {
		os.Remove(updatePath)
	}
	return nil
}

// Rollback restores the backup over target, failing with
// BackupNotFound if none exists. targetPath/backupPath default to
// the current executable and its derived backup path when empty.
func Rollback(targetPath, backupPath string) (*InstallResult, error) {
	target := targetPath
	if target == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, errtax.NewNoExecutablePath()
		}
		target = exe
	}

	backup := backupPath
	if backup == "" {
		backup = backupPathFor(target)
	}

	if _, err := os.Stat(backup); errors.Is(err, os.ErrNotExist) {
		return nil, errtax.NewBackupNotFound(backup)
	}

	if err := restoreBackup(backup, target); err != nil {
		return nil, err
	}

	return &InstallResult{BinaryPath: target, BackupPath: backup}, nil
}

// CleanupBackupAt removes the backup file at path, if it exists.
// Removing a backup that's already gone is not an error.
func CleanupBackupAt(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errtax.ClassifyIOError(err, path, "remove")
	}
	return nil
}

// CleanupBackup removes the backup derived from the current
// executable's default path.
func CleanupBackup() error {
	exe, err := os.Executable()
	if err != nil {
		return errtax.NewNoExecutablePath()
	}
	return CleanupBackupAt(backupPathFor(exe))
}

// HasBackupAt reports whether a backup exists at path.
func HasBackupAt(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// HasBackup reports whether a backup exists for the current
// executable's default backup path.
func HasBackup() (bool, error) {
	exe, err := os.Executable()
	if err != nil {
		return false, errtax.NewNoExecutablePath()
	}
	return HasBackupAt(backupPathFor(exe)), nil
}
