package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/studymate/internal/model"
	"github.com/xxxsen/studymate/internal/pkg/errcode"
	"github.com/xxxsen/studymate/internal/pkg/response"
	"github.com/xxxsen/studymate/internal/service"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	// multipart framing and the title field on top of the file itself
	multipartSlack = 1 << 20
)

type DocumentHandler struct {
	documents     *service.DocumentService
	maxUploadSize int64
}

func NewDocumentHandler(documents *service.DocumentService, maxUploadSize int64) *DocumentHandler {
	return &DocumentHandler{documents: documents, maxUploadSize: maxUploadSize}
}

type updateDocumentRequest struct {
	Title string `json:"title"`
}

type documentStatusResponse struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	FailReason string `json:"fail_reason,omitempty"`
	ChunkCount int    `json:"chunk_count"`
	PageCount  int    `json:"page_count"`
}

func (h *DocumentHandler) Upload(c *gin.Context) {
	if h.maxUploadSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize+multipartSlack)
	}
	file, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, errcode.ErrFileTooLarge, "file too large (max "+formatUploadLimit(h.maxUploadSize)+")")
			return
		}
		response.Error(c, errcode.ErrInvalidFile, "please upload a file")
		return
	}
	if h.maxUploadSize > 0 && file.Size > h.maxUploadSize {
		response.Error(c, errcode.ErrFileTooLarge, "file too large (max "+formatUploadLimit(h.maxUploadSize)+")")
		return
	}
	title := c.PostForm("title")
	if strings.TrimSpace(title) == "" {
		response.Error(c, errcode.ErrInvalid, "please provide a document title")
		return
	}
	opened, err := file.Open()
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "failed to open file")
		return
	}
	defer opened.Close()
	contentType, err := sniffContentType(opened)
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "failed to read file")
		return
	}
	if declared := file.Header.Get("Content-Type"); declared != "" && declared != "application/octet-stream" {
		contentType = declared
	}
	doc, err := h.documents.Upload(c.Request.Context(), getUserID(c), service.UploadInput{
		Title:       title,
		FileName:    file.Filename,
		ContentType: contentType,
		Size:        file.Size,
		Reader:      opened,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, presentDocument(c, doc))
}

func (h *DocumentHandler) List(c *gin.Context) {
	limit := queryUint(c, "limit", defaultPageSize, maxPageSize)
	offset := queryUint(c, "offset", 0, 0)
	docs, err := h.documents.List(c.Request.Context(), getUserID(c), limit, offset)
	if err != nil {
		handleError(c, err)
		return
	}
	for i := range docs {
		docs[i] = *presentDocument(c, &docs[i])
	}
	response.Success(c, docs)
}

func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.documents.Get(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, presentDocument(c, doc))
}

func (h *DocumentHandler) Update(c *gin.Context) {
	var req updateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	doc, err := h.documents.UpdateTitle(c.Request.Context(), getUserID(c), c.Param("id"), req.Title)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, presentDocument(c, doc))
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	if err := h.documents.Delete(c.Request.Context(), getUserID(c), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

func (h *DocumentHandler) Status(c *gin.Context) {
	doc, err := h.documents.Status(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, documentStatusResponse{
		ID:         doc.ID,
		Status:     doc.Status,
		FailReason: doc.FailReason,
		ChunkCount: doc.ChunkCount,
		PageCount:  doc.PageCount,
	})
}

// presentDocument drops the heavy fields and makes a relative file URL
// absolute for the calling host.
func presentDocument(c *gin.Context, doc *model.Document) *model.Document {
	out := *doc
	out.RawText = ""
	out.Chunks = nil
	if strings.HasPrefix(out.FileURL, "/") {
		out.FileURL = requestBaseURL(c) + out.FileURL
	}
	return &out
}

func sniffContentType(r io.ReadSeeker) (string, error) {
	buf := make([]byte, 512)
	n, err := io.ReadFull(r, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", err
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return http.DetectContentType(buf[:n]), nil
}
