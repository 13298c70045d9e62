package server

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"bookexchange/internal/app"
	"bookexchange/pkg/domain"
)

func (s *Server) handleHome(c echo.Context) error {
	ctx := c.Request().Context()
	books, err := s.app.Home(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"books": s.bookDTOs(ctx, books)})
}

func (s *Server) handleListBooks(c echo.Context) error {
	ctx := c.Request().Context()
	books, err := s.app.ListBooks(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"books": s.bookDTOs(ctx, books)})
}

func (s *Server) handleBookDetails(c echo.Context) error {
	ctx := c.Request().Context()
	details, err := s.app.BookDetails(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, bookDetailsResponse{
		Book:    s.bookDTO(ctx, details.Book),
		Reviews: nonNil(details.Reviews),
		Average: details.Average,
	})
}

type createBookFunc func(ctx context.Context, owner domain.User, in app.BookInput, cover *app.Upload) (domain.Book, error)

func (s *Server) handleAddBook(c echo.Context) error {
	return s.createBook(c, s.app.AddBook)
}

func (s *Server) handleSellBook(c echo.Context) error {
	return s.createBook(c, s.app.SellBook)
}

func (s *Server) createBook(c echo.Context, create createBookFunc) error {
	var req bookRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}
	cover, closeFn, err := formUpload(c, "cover")
	defer closeFn()
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	book, err := create(ctx, currentUser(c), req.input(), cover)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, s.bookDTO(ctx, book))
}

func (s *Server) handleEditBook(c echo.Context) error {
	var req bookRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	book, err := s.app.EditBook(ctx, currentUser(c), c.Param("id"), req.input())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.bookDTO(ctx, book))
}

func (s *Server) handleDeleteBook(c echo.Context) error {
	if err := s.app.DeleteBook(c.Request().Context(), currentUser(c), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleBookCover(c echo.Context) error {
	up, closeFn, err := requireUpload(c, "cover")
	defer closeFn()
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	book, err := s.app.SetBookCover(ctx, currentUser(c), c.Param("id"), *up)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.bookDTO(ctx, book))
}

func (s *Server) handleAddReview(c echo.Context) error {
	var req reviewRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}
	review, err := s.app.AddReview(c.Request().Context(), currentUser(c), c.Param("id"), req.Rating, req.Comment)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, review)
}

func (s *Server) handleListReviews(c echo.Context) error {
	reviews, err := s.app.ListReviews(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"reviews": nonNil(reviews)})
}

func (s *Server) handleMyBooks(c echo.Context) error {
	ctx := c.Request().Context()
	books, err := s.app.MyBooks(ctx, currentUser(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"books": s.bookDTOs(ctx, books)})
}

func (s *Server) handlePurchaseSearch(c echo.Context) error {
	ctx := c.Request().Context()
	q := c.QueryParam("q")
	books, err := s.app.SearchPurchasable(ctx, currentUser(c), q)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"query": q, "books": s.bookDTOs(ctx, books)})
}

func (s *Server) handleSwappableBooks(c echo.Context) error {
	ctx := c.Request().Context()
	books, err := s.app.ListSwappableBooks(ctx, currentUser(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"books": s.bookDTOs(ctx, books)})
}

func (s *Server) handleDashboard(c echo.Context) error {
	ctx := c.Request().Context()
	d, err := s.app.Dashboard(ctx, currentUser(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, dashboardResponse{
		Books:         s.bookDTOs(ctx, d.Books),
		SwapsSent:     nonNil(d.SwapsSent),
		SwapsReceived: nonNil(d.SwapsReceived),
		Purchases:     nonNil(d.Purchases),
		Sales:         nonNil(d.Sales),
	})
}
