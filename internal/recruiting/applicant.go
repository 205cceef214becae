package recruiting

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/hrvibe/hrvibe-core/internal/store"
)

const (
	payloadSeparator = "_"
	signatureLength  = 10
	// Telegram limits the start parameter to 64 characters.
	maxPayloadLength = 64
)

// ApplicantLink is the applicant bot deep link for the negotiation.
func (s *Service) ApplicantLink(negotiationID string) string {
	q := url.Values{}
	q.Set("start", s.applicantPayload(negotiationID))
	return fmt.Sprintf("https://t.me/%s?%s", s.config.ApplicantBotUsername, q.Encode())
}

func (s *Service) applicantPayload(negotiationID string) string {
	return negotiationID + payloadSeparator + s.sign(negotiationID)
}

func (s *Service) sign(negotiationID string) string {
	mac := hmac.New(sha256.New, []byte(s.config.SharedSecret))
	mac.Write([]byte(negotiationID))
	return hex.EncodeToString(mac.Sum(nil))[:signatureLength]
}

// ParseApplicantPayload checks the signature of a deep link payload and
// returns the negotiation id.
func (s *Service) ParseApplicantPayload(payload string) (string, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" || len(payload) > maxPayloadLength {
		return "", ErrBadPayload
	}

	idx := strings.LastIndex(payload, payloadSeparator)
	if idx <= 0 {
		return "", ErrBadPayload
	}

	negotiationID, signature := payload[:idx], payload[idx+1:]
	if !hmac.Equal([]byte(signature), []byte(s.sign(negotiationID))) {
		return "", ErrBadPayload
	}

	return negotiationID, nil
}

// BindApplicant links the Telegram user who opened the deep link to the
// negotiation. Opening the link again from the same account is fine.
func (s *Service) BindApplicant(ctx context.Context, payload string, telegramID int64) (*store.Negotiation, error) {
	negotiationID, err := s.ParseApplicantPayload(payload)
	if err != nil {
		return nil, err
	}

	n, err := s.store.GetNegotiation(ctx, negotiationID)
	if err != nil {
		return nil, err
	}

	if err := s.store.BindApplicant(ctx, n.ID, telegramID); err != nil {
		return nil, err
	}
	n.ApplicantTelegramID = telegramID

	return n, nil
}

// ApplicantNegotiation returns the negotiation the applicant is bound to.
func (s *Service) ApplicantNegotiation(ctx context.Context, telegramID int64) (*store.Negotiation, error) {
	return s.store.GetNegotiationByApplicant(ctx, telegramID)
}

// ApplicantVideoPath is where the applicant video is kept.
func (s *Service) ApplicantVideoPath(n *store.Negotiation) string {
	return filepath.Join(s.config.DataDir, "videos", "applicants", n.VacancyID, n.ID+videoExt)
}

// SaveApplicantVideo records the video downloaded to ApplicantVideoPath.
func (s *Service) SaveApplicantVideo(ctx context.Context, negotiationID string) error {
	n, err := s.store.GetNegotiation(ctx, negotiationID)
	if err != nil {
		return err
	}

	return s.store.SetApplicantVideo(ctx, n.ID, s.ApplicantVideoPath(n))
}

// ManagerVideoFor returns the manager video of the negotiation's vacancy or
// an empty string.
func (s *Service) ManagerVideoFor(ctx context.Context, negotiationID string) (string, error) {
	n, err := s.store.GetNegotiation(ctx, negotiationID)
	if err != nil {
		return "", err
	}

	v, err := s.store.GetVacancy(ctx, n.VacancyID)
	if err != nil {
		return "", err
	}

	return v.VideoPath, nil
}
