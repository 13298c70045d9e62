package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"bookexchange/internal/app"
)

func (s *Server) handleRequestSwap(c echo.Context) error {
	var req swapRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}
	swap, err := s.app.RequestSwap(c.Request().Context(), currentUser(c), app.SwapInput{
		RequestedBookID: req.RequestedBookID,
		OfferedBookID:   req.OfferedBookID,
		Message:         req.Message,
		Mobile:          req.Mobile,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, swap)
}

func (s *Server) handleSwapsSent(c echo.Context) error {
	swaps, err := s.app.ListSwapsSent(c.Request().Context(), currentUser(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"swaps": nonNil(swaps)})
}

func (s *Server) handleSwapsReceived(c echo.Context) error {
	swaps, err := s.app.ListSwapsReceived(c.Request().Context(), currentUser(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"swaps": nonNil(swaps)})
}

func (s *Server) handleAcceptSwap(c echo.Context) error {
	user, swapID := currentUser(c), c.Param("id")
	out, err := s.app.AcceptSwap(c.Request().Context(), user, swapID)
	if err != nil {
		s.audit(c, "swap_accept", "fail", "user_id", user.ID, "swap_id", swapID, "reason", decisionFailure(err))
		return err
	}
	s.audit(c, "swap_accept", "success", "user_id", user.ID, "swap_id", swapID, "transaction_id", out.Transaction.ID)
	return c.JSON(http.StatusOK, echo.Map{
		"swap":        out.Swap,
		"transaction": out.Transaction,
		"sale":        out.Sale,
	})
}

func (s *Server) handleRejectSwap(c echo.Context) error {
	user, swapID := currentUser(c), c.Param("id")
	swap, err := s.app.RejectSwap(c.Request().Context(), user, swapID)
	if err != nil {
		s.audit(c, "swap_reject", "fail", "user_id", user.ID, "swap_id", swapID, "reason", decisionFailure(err))
		return err
	}
	s.audit(c, "swap_reject", "success", "user_id", user.ID, "swap_id", swapID)
	return c.JSON(http.StatusOK, swap)
}

func (s *Server) handleBuyBook(c echo.Context) error {
	var req purchaseRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}
	screenshot, closeFn, err := formUpload(c, "screenshot")
	defer closeFn()
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	payment, err := s.app.BuyBook(ctx, currentUser(c), c.Param("id"), app.PurchaseInput{
		Method:         req.Method,
		TransactionRef: req.TransactionRef,
	}, screenshot)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, s.paymentDTO(ctx, payment))
}

func (s *Server) handleCheckout(c echo.Context) error {
	var req checkoutRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}
	screenshot, closeFn, err := formUpload(c, "screenshot")
	defer closeFn()
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	payment, err := s.app.Checkout(ctx, currentUser(c), c.Param("id"), req.TransactionRef, screenshot)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, s.paymentDTO(ctx, payment))
}

func (s *Server) handlePendingPayments(c echo.Context) error {
	ctx := c.Request().Context()
	payments, err := s.app.PendingPayments(ctx, currentUser(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"payments": s.paymentDTOs(ctx, payments)})
}

func (s *Server) handleVerifyPayment(c echo.Context) error {
	var req verifyRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	user, paymentID := currentUser(c), c.Param("id")
	out, err := s.app.VerifyPayment(ctx, user, paymentID, req.Mobile)
	if err != nil {
		s.audit(c, "payment_verify", "fail", "user_id", user.ID, "payment_id", paymentID, "reason", decisionFailure(err))
		return err
	}
	s.audit(c, "payment_verify", "success", "user_id", user.ID, "payment_id", paymentID, "transaction_id", out.Transaction.ID)
	return c.JSON(http.StatusOK, echo.Map{
		"payment":     s.paymentDTO(ctx, out.Payment),
		"transaction": out.Transaction,
	})
}

func (s *Server) handleRejectPayment(c echo.Context) error {
	ctx := c.Request().Context()
	user, paymentID := currentUser(c), c.Param("id")
	payment, err := s.app.RejectPayment(ctx, user, paymentID)
	if err != nil {
		s.audit(c, "payment_reject", "fail", "user_id", user.ID, "payment_id", paymentID, "reason", decisionFailure(err))
		return err
	}
	s.audit(c, "payment_reject", "success", "user_id", user.ID, "payment_id", paymentID)
	return c.JSON(http.StatusOK, s.paymentDTO(ctx, payment))
}

func (s *Server) handlePurchases(c echo.Context) error {
	ctx := c.Request().Context()
	payments, err := s.app.Purchases(ctx, currentUser(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"payments": s.paymentDTOs(ctx, payments)})
}

func (s *Server) handleSales(c echo.Context) error {
	ctx := c.Request().Context()
	payments, err := s.app.Sales(ctx, currentUser(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"payments": s.paymentDTOs(ctx, payments)})
}

func (s *Server) handlePaymentSuccess(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"message": s.app.PaymentSuccess()})
}

// decisionFailure names the reason a swap or payment decision failed.
func decisionFailure(err error) string {
	var verr *app.ValidationError
	switch {
	case errors.As(err, &verr):
		return "invalid_" + verr.Field
	case errors.Is(err, app.ErrNotFound):
		return "not_found"
	case errors.Is(err, app.ErrAlreadyDecided):
		return "already_decided"
	default:
		return "internal"
	}
}
