package api

import (
	"errors"
	"io"
	"net/http"
)

// maxTxBytes bounds the size of a submitted transaction.
const maxTxBytes = 1 << 20

// @Title: Submit Transaction
// @Route: POST /api/tx
// @Description: Submits a signed transaction and waits for it to be committed. The body is a JSON signed transaction as produced by cmxctl.
// @Response: {"hash": "...", "code": 0, "log": "...", "height": 12, "data": {"message": "..."}}
func (s *Service) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxTxBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "Transaction too large")
			return
		}
		s.writeError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}
	if len(raw) == 0 {
		s.writeError(w, http.StatusBadRequest, "Empty transaction")
		return
	}

	res, err := s.submitter.Submit(r.Context(), raw)
	if err != nil {
		log.Errorf("Failed to submit transaction: %v", err)
		s.writeError(w, http.StatusBadGateway, "Failed to submit transaction")
		return
	}
	if !res.OK() {
		log.Debugf("Tx %s rejected with code %d: %s", res.Hash, res.Code, res.Log)
	}
	s.writeJSON(w, statusForCode(res.Code), res)
}
