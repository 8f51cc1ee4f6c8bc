package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/zelta-inc/zelta-engine/pkg/logging"
)

// maxArgLogLength bounds logged tool arguments; document excerpts and
// feedback text can run long.
const maxArgLogLength = 200

// sensitiveArgKeywords marks tool argument keys whose values are redacted
// before logging.
var sensitiveArgKeywords = []string{"password", "secret", "token", "key", "credential"}

// MCPRequestLogger logs MCP JSON-RPC traffic at debug level: the tool being
// called, its sanitized arguments, and the outcome with duration. A nil
// logger disables the middleware entirely.
func MCPRequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if logger == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// The body is consumed to parse the JSON-RPC envelope, then
			// restored for the MCP server.
			bodyBytes, err := io.ReadAll(r.Body)
			if err != nil {
				logger.Error("Failed to read MCP request body", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))

			var rpcReq rpcRequest
			if err := json.Unmarshal(bodyBytes, &rpcReq); err != nil {
				// Not every request carries a JSON body; log what we can.
				logger.Debug("Failed to parse MCP request JSON", zap.Error(err))
			}

			toolName := rpcReq.Params.Name
			logger.Debug("MCP request",
				zap.String("method", rpcReq.Method),
				zap.String("tool", toolName),
				zap.Any("arguments", sanitizeArguments(rpcReq.Params.Arguments)),
			)

			recorder := &rpcRecorder{
				ResponseWriter: w,
				body:           &bytes.Buffer{},
			}
			start := time.Now()

			next.ServeHTTP(recorder, r)

			duration := time.Since(start)

			var rpcResp rpcResponse
			if err := json.Unmarshal(recorder.body.Bytes(), &rpcResp); err != nil {
				logger.Debug("Failed to parse MCP response JSON", zap.Error(err))
				return
			}

			if rpcResp.Error != nil {
				logger.Debug("MCP response error",
					zap.String("tool", toolName),
					zap.Int("error_code", rpcResp.Error.Code),
					zap.String("error_message", rpcResp.Error.Message),
					zap.Duration("duration", duration),
				)
			} else {
				logger.Debug("MCP response success",
					zap.String("tool", toolName),
					zap.Duration("duration", duration),
				)
			}
		})
	}
}

// rpcRequest is the slice of a JSON-RPC request the logger cares about.
type rpcRequest struct {
	Method string `json:"method"`
	Params struct {
		Name      string                 `json:"name"`
		Arguments map[string]interface{} `json:"arguments"`
	} `json:"params"`
}

type rpcResponse struct {
	Result interface{} `json:"result"`
	Error  *rpcError   `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// rpcRecorder tees the response body so the outcome can be logged after the
// MCP server has written it.
type rpcRecorder struct {
	http.ResponseWriter
	body *bytes.Buffer
}

func (r *rpcRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

// Flush forwards to the wrapped writer; the streamable MCP transport relies
// on it when responding over SSE.
func (r *rpcRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// sanitizeArguments redacts sensitive keys and truncates long string values.
func sanitizeArguments(args map[string]interface{}) map[string]interface{} {
	if args == nil {
		return nil
	}

	result := make(map[string]interface{}, len(args))
	for k, v := range args {
		if isSensitiveArg(k) {
			result[k] = logging.RedactedText
			continue
		}
		if str, ok := v.(string); ok {
			result[k] = logging.TruncateString(str, maxArgLogLength)
		} else {
			result[k] = v
		}
	}

	return result
}

func isSensitiveArg(key string) bool {
	lower := strings.ToLower(key)
	for _, keyword := range sensitiveArgKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}
