package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pkg/errors"

	"classattend/internal/apperr"
	"classattend/internal/model"
)

// ReplaceActiveQrCode deactivates the subject's codes and inserts code as the
// only active one. A transaction-scoped advisory lock on the subject id
// serializes concurrent callers; the partial unique index backs it up.
func (s *Store) ReplaceActiveQrCode(ctx context.Context, subjectID int64, code string) (model.QrCode, error) {
	var qr model.QrCode
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, subjectID); err != nil {
			return apperr.Unavailable(errors.Wrap(err, "lock subject"))
		}
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM subjects WHERE id = $1)`, subjectID).Scan(&exists); err != nil {
			return storeErr(err, "check subject", "")
		}
		if !exists {
			return apperr.NotFoundf("subject %d not found", subjectID)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE qr_codes SET active = FALSE WHERE subject_id = $1 AND active`, subjectID); err != nil {
			return apperr.Unavailable(errors.Wrap(err, "deactivate qr codes"))
		}
		row := tx.QueryRowContext(ctx, `
			INSERT INTO qr_codes (subject_id, code, active)
			VALUES ($1, $2, TRUE)
			RETURNING `+qrCodeColumns,
			subjectID, code)
		var err error
		if qr, err = scanQrCode(row); err != nil {
			return storeErr(err, "insert qr code", "")
		}
		return nil
	})
	if err != nil {
		return model.QrCode{}, err
	}
	return qr, nil
}

// ListActiveQrCodes returns the active codes of a subject (zero or one).
func (s *Store) ListActiveQrCodes(ctx context.Context, subjectID int64) ([]model.QrCode, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+qrCodeColumns+` FROM qr_codes WHERE subject_id = $1 AND active ORDER BY id`, subjectID)
	if err != nil {
		return nil, storeErr(err, "list qr codes", "")
	}
	codes, err := collect(rows, scanQrCode)
	if err != nil {
		return nil, storeErr(err, "scan qr codes", "")
	}
	return codes, nil
}

// GetActiveQrCodeByCode resolves a scanned code.
func (s *Store) GetActiveQrCodeByCode(ctx context.Context, code string) (model.QrCode, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+qrCodeColumns+` FROM qr_codes WHERE code = $1 AND active ORDER BY id DESC LIMIT 1`, code)
	qr, err := scanQrCode(row)
	if err != nil {
		return model.QrCode{}, storeErr(err, "get qr code", fmt.Sprintf("qr code %q is not active", code))
	}
	return qr, nil
}

// DeactivateAllQrCodes expires every active code and returns how many changed.
func (s *Store) DeactivateAllQrCodes(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE qr_codes SET active = FALSE WHERE active`)
	if err != nil {
		return 0, apperr.Unavailable(errors.Wrap(err, "deactivate qr codes"))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperr.Unavailable(errors.Wrap(err, "rows affected"))
	}
	return n, nil
}
