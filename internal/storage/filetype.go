package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"

	"github.com/ignatzorin/tertab-backend/internal/pkg/apperror"
)

// sniffLen - столько байт читается для filetype. Сигнатура doc лежит за первыми 512 байтами,
// docx распознаётся по записям zip в начале архива.
const sniffLen = 8192

// allowedKinds: расширение файла -> допустимые типы по сигнатуре.
// docx - это zip, поэтому общий zip тоже принимается.
var allowedKinds = map[string][]string{
	".pdf":  {"pdf"},
	".jpg":  {"jpg"},
	".jpeg": {"jpg"},
	".png":  {"png"},
	".doc":  {"doc"},
	".docx": {"docx", "zip"},
}

// AllowedExtensions - для сообщений об ошибках.
const AllowedExtensions = "pdf, jpg, jpeg, png, doc, docx"

// checkDocument проверяет расширение и сигнатуру и возвращает reader с полным содержимым.
func checkDocument(name string, r io.Reader) (io.Reader, error) {
	ext := strings.ToLower(filepath.Ext(name))
	kinds, ok := allowedKinds[ext]
	if !ok {
		return nil, unsupported()
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("storage: не удалось прочитать файл: %w", err)
	}
	head = head[:n]
	if n == 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "the file is empty")
	}

	kind, err := filetype.Match(head)
	if err != nil || kind == filetype.Unknown {
		return nil, unsupported()
	}
	for _, k := range kinds {
		if kind.Extension == k {
			return io.MultiReader(bytes.NewReader(head), r), nil
		}
	}
	return nil, unsupported()
}

func unsupported() error {
	return apperror.New(apperror.ErrCodeValidation, "the file must be a file of type: "+AllowedExtensions)
}
