package session

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ruslano69/tablegrab/pkg/adapters"
	"github.com/ruslano69/tablegrab/pkg/audit"
	"github.com/ruslano69/tablegrab/pkg/core/dialect"
)

// UploadPrefix - префикс сохраненного загруженного файла
const UploadPrefix = "temp_"

// AdoptUpload сохраняет загруженный файл SQLite как dir/temp_<name>
// и возвращает дескриптор, указывающий на него.
//
// От name берется только последний элемент пути. Существующий файл
// с тем же именем перезаписывается.
func AdoptUpload(ctx context.Context, name string, r io.Reader, dir string, opts Options) (adapters.Config, error) {
	opts = opts.withDefaults()
	started := time.Now()

	path, written, err := storeUpload(name, r, dir)

	entry := audit.NewEntry(audit.OpUpload, audit.StatusSuccess).
		WithDialect(string(dialect.SQLite)).
		WithResource(path).
		WithDuration(time.Since(started)).
		WithMetadata("bytes", written).
		WithError(err)
	if logErr := opts.Audit.Log(ctx, entry); logErr != nil {
		opts.Logger.Warn().Err(logErr).Msg("failed to write audit entry")
	}

	if err != nil {
		return adapters.Config{}, err
	}

	opts.Logger.Info().Str("path", path).Int64("bytes", written).Msg("upload stored")
	return adapters.Config{Type: string(dialect.SQLite), Path: path}, nil
}

func storeUpload(name string, r io.Reader, dir string) (string, int64, error) {
	base := filepath.Base(strings.TrimSpace(name))
	if base == "" || base == "." || base == ".." || base == string(filepath.Separator) {
		return "", 0, uploadError(fmt.Sprintf("invalid upload file name: %q", name), nil)
	}
	if dir == "" {
		dir = "."
	}

	path := filepath.Join(dir, UploadPrefix+base)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return path, 0, uploadError("failed to create upload file", err)
	}

	written, err := io.Copy(f, r)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return path, written, uploadError("failed to store upload", err)
	}
	return path, written, nil
}

func uploadError(msg string, err error) error {
	return &adapters.Error{
		Kind:    adapters.KindConfiguration,
		Dialect: string(dialect.SQLite),
		Op:      "upload",
		Msg:     msg,
		Err:     err,
	}
}
