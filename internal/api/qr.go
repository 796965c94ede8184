package api

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/harrylevesque/orderscan/internal/models"
	"github.com/harrylevesque/orderscan/internal/qr"
)

type QRHistoryResponse struct {
	Codes []models.QRCode `json:"codes"`
}

func (s *Server) handleQR(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	format, err := qr.ParseFormat(q.Get("format"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	target, err := qr.ParseTarget(q.Get("target"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	size, err := queryInt(r, "size")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	id, err := s.orderID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	creds := credentials(r)

	// Only existing orders get a share code.
	order, err := s.orders.Get(r.Context(), creds, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	link, err := qr.OrderLink(creds.Shop, order.ID, target, order.StatusPageURL)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	img, err := qr.Render(link, qr.Options{Size: size, Level: q.Get("level"), Format: format})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.metrics.RecordQR(string(format))

	if s.qrStore != nil {
		rec, err := s.qrStore.Save(&models.QRCode{OrderID: order.ID, Data: link, CreatedAt: time.Now().UTC()})
		if err != nil {
			s.logger.FromContext(r.Context()).WithError(err).WithFields(logrus.Fields{"order": id}).Warn("Failed to record QR code")
		} else {
			w.Header().Set("X-QR-ID", rec.ID)
		}
	}

	w.Header().Set("Content-Type", img.ContentType)
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-QR-Content", link)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img.Data)
}

func (s *Server) handleQRHistory(w http.ResponseWriter, r *http.Request) {
	codes := []models.QRCode{}
	if s.qrStore != nil {
		all, err := s.qrStore.GetAll()
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		codes = append(codes, all...)
	}
	writeJSON(w, http.StatusOK, QRHistoryResponse{Codes: codes})
}

func (s *Server) handleClearQRHistory(w http.ResponseWriter, r *http.Request) {
	if s.qrStore != nil {
		if err := s.qrStore.Clear(); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}
