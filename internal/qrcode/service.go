// Package qrcode issues the check-in codes teachers display in class.
package qrcode

import (
	"context"
	"log"
	"strings"

	"classattend/internal/apperr"
	"classattend/internal/metrics"
	"classattend/internal/model"
)

// Repository is the QR code store.
type Repository interface {
	ReplaceActiveQrCode(ctx context.Context, subjectID int64, code string) (model.QrCode, error)
	ListActiveQrCodes(ctx context.Context, subjectID int64) ([]model.QrCode, error)
	GetActiveQrCodeByCode(ctx context.Context, code string) (model.QrCode, error)
	DeactivateAllQrCodes(ctx context.Context) (int64, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Generate makes code the only active code of the subject.
func (svc *Service) Generate(ctx context.Context, subjectID int64, code string) (model.QrCode, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return model.QrCode{}, apperr.Invalid("code", "code is required")
	}
	qr, err := svc.repo.ReplaceActiveQrCode(ctx, subjectID, code)
	if err != nil {
		return model.QrCode{}, err
	}
	metrics.QrCodesIssued.Inc()
	return qr, nil
}

// Active returns the subject's current code.
func (svc *Service) Active(ctx context.Context, subjectID int64) (model.QrCode, error) {
	codes, err := svc.repo.ListActiveQrCodes(ctx, subjectID)
	if err != nil {
		return model.QrCode{}, err
	}
	if len(codes) == 0 {
		return model.QrCode{}, apperr.NotFoundf("subject %d has no active qr code", subjectID)
	}
	return codes[len(codes)-1], nil
}

// Resolve looks up an active code by its text.
func (svc *Service) Resolve(ctx context.Context, code string) (model.QrCode, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return model.QrCode{}, apperr.Invalid("code", "code is required")
	}
	return svc.repo.GetActiveQrCodeByCode(ctx, code)
}

// ExpireAll deactivates every active code.
func (svc *Service) ExpireAll(ctx context.Context) (int64, error) {
	n, err := svc.repo.DeactivateAllQrCodes(ctx)
	if err != nil {
		return 0, err
	}
	metrics.QrCodesExpired.Add(float64(n))
	log.Printf("qr expiry: deactivated %d codes", n)
	return n, nil
}
