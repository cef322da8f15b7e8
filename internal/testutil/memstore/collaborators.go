package memstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/ignatzorin/tertab-backend/internal/domain/entity"
	"github.com/ignatzorin/tertab-backend/internal/domain/valueobject"
)

// Storage - файловое хранилище в памяти.
type Storage struct {
	mu      sync.Mutex
	objects map[string][]byte
	seq     int

	// FailStore и FailDelete срабатывают для указанных имён файлов и путей.
	FailStore  map[string]error
	FailDelete map[string]error
	FailExists map[string]error
}

func NewStorage() *Storage {
	return &Storage{
		objects:    make(map[string][]byte),
		FailStore:  make(map[string]error),
		FailDelete: make(map[string]error),
		FailExists: make(map[string]error),
	}
}

func (s *Storage) Store(ctx context.Context, ownerID uuid.UUID, name string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	failure, fail := s.FailStore[name]
	s.mu.Unlock()
	if fail {
		return "", failure
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	path := fmt.Sprintf("%s/%d_%s", ownerID, s.seq, name)
	s.objects[path] = data
	return path, nil
}

func (s *Storage) Exists(ctx context.Context, path string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.FailExists[path]; ok {
		return false, err
	}
	_, ok := s.objects[path]
	return ok, nil
}

func (s *Storage) Delete(ctx context.Context, path string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.FailDelete[path]; ok {
		return false, err
	}
	if _, ok := s.objects[path]; !ok {
		return false, nil
	}
	delete(s.objects, path)
	return true, nil
}

// Has сообщает, лежит ли объект по пути.
func (s *Storage) Has(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[path]
	return ok
}

// Remove убирает объект в обход Delete, имитируя уже пропавший файл.
func (s *Storage) Remove(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, path)
}

func (s *Storage) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

// Mailer запоминает отправленные письма.
type Mailer struct {
	mu   sync.Mutex
	sent []entity.MailMessage
	Err  error
}

func (m *Mailer) Send(ctx context.Context, msg entity.MailMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *Mailer) Sent() []entity.MailMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]entity.MailMessage(nil), m.sent...)
}

// Last возвращает последнее письмо.
func (m *Mailer) Last() (entity.MailMessage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return entity.MailMessage{}, false
	}
	return m.sent[len(m.sent)-1], true
}

// Settings отдаёт цены из Store без кэширования.
type Settings struct {
	Store *Store
}

func (p Settings) Current(ctx context.Context) (*entity.PlatformSetting, error) {
	return p.Store.Settings().Get(ctx)
}

func (p Settings) CurrentPrice(ctx context.Context, class valueobject.RequestClass) (valueobject.Money, error) {
	s, err := p.Current(ctx)
	if err != nil {
		return valueobject.Money{}, err
	}
	return s.PriceFor(class), nil
}

// Upload собирает загрузку из байтов.
func Upload(name string, content []byte) entity.Upload {
	return entity.Upload{
		Name: name,
		Size: int64(len(content)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(content)), nil
		},
	}
}

// BrokenUpload не открывается.
func BrokenUpload(name string) entity.Upload {
	return entity.Upload{
		Name: name,
		Open: func() (io.ReadCloser, error) { return nil, errors.New("upload stream closed") },
	}
}
