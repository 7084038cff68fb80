package gin

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-kratos/kratos/v2/errors"
	thttp "github.com/go-kratos/kratos/v2/transport/http"
	shttp "github.com/jichu20/sleuth-go/pkg/http"
)

type errorRender struct {
	body        []byte
	contentType string
}

// Render (JSON) writes data with custom ContentType.
func (er *errorRender) Render(w http.ResponseWriter) error {
	er.WriteContentType(w)
	_, err := w.Write(er.body)
	return err
}

// WriteContentType (JSON) writes JSON ContentType.
func (er *errorRender) WriteContentType(w http.ResponseWriter) {
	w.Header().Set("Content-Type", er.contentType)
}

// Error encodes the object to the HTTP response.
// Errors that are not kratos errors are rendered as 500.
func Error(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusOK)
		return
	}
	se := errors.FromError(err)
	codec, _ := thttp.CodecForRequest(c.Request, "Accept")
	body, merr := codec.Marshal(se)
	if merr != nil {
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Render(int(se.Code), &errorRender{body: body, contentType: "application/" + codec.Name()})
}

// Middlewares runs a net/http middleware chain inside gin. The remaining gin
// handlers run where the chain calls its next handler; the request is
// aborted when it does not. Status and body written by gin handlers go
// through the writers the chain installed.
func Middlewares(m ...shttp.Middleware) gin.HandlerFunc {
	chain := shttp.Chain(m...)
	return func(c *gin.Context) {
		writer := c.Writer
		called := false
		chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
			c.Request = r
			c.Writer = &responseWriter{ResponseWriter: writer, w: w}
			defer func() { c.Writer = writer }()
			c.Next()
		})).ServeHTTP(writer, c.Request)
		if !called {
			c.Abort()
		}
	}
}

type responseWriter struct {
	gin.ResponseWriter
	w http.ResponseWriter
}

func (rw *responseWriter) Header() http.Header {
	return rw.w.Header()
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.w.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	return rw.w.Write(b)
}

func (rw *responseWriter) WriteString(s string) (int, error) {
	return io.WriteString(rw.w, s)
}
