package notes

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"tg-dayplan-bot/internal/domain"
)

const maxNoteLength = 500

// Service хранит короткие заметки пользователя.
type Service struct {
	notes domain.NoteRepo
}

// NewService создаёт сервис.
func NewService(notes domain.NoteRepo) *Service {
	return &Service{notes: notes}
}

// Add сохраняет заметку на дату.
func (s *Service) Add(ctx context.Context, userID int64, text string, date time.Time) (domain.Note, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Note{}, fmt.Errorf("%w: заметка не может быть пустой", domain.ErrValidation)
	}
	if utf8.RuneCountInString(text) > maxNoteLength {
		return domain.Note{}, fmt.Errorf("%w: заметка длиннее %d символов", domain.ErrValidation, maxNoteLength)
	}
	note, err := s.notes.AddNote(ctx, domain.Note{UserID: userID, Date: date, Text: text})
	if err != nil {
		return domain.Note{}, fmt.Errorf("сохранение заметки: %w", err)
	}
	return note, nil
}

// ListToday возвращает заметки на дату.
func (s *Service) ListToday(ctx context.Context, userID int64, date time.Time) ([]domain.Note, error) {
	list, err := s.notes.ListNotesForDate(ctx, userID, date)
	if err != nil {
		return nil, fmt.Errorf("чтение заметок: %w", err)
	}
	return list, nil
}
