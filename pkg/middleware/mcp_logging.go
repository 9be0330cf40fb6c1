package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lookout-hq/lookout/pkg/logging"
	"github.com/lookout-hq/lookout/pkg/metrics"
)

// maxLoggedArgLength bounds string tool arguments in logs.
const maxLoggedArgLength = 200

// MCPRequestLogger returns middleware that logs MCP JSON-RPC calls and counts
// tools/call outcomes in m. Bodies are buffered so the MCP server still sees
// the full request. Pass nil logger and nil m to disable.
func MCPRequestLogger(logger *zap.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if logger == nil && m == nil {
			return next
		}
		if logger == nil {
			logger = zap.NewNop()
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, err := io.ReadAll(r.Body)
			if err != nil {
				logger.Error("Failed to read MCP request body", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(bodyBytes))

			var rpcReq jsonRPCRequest
			if len(bodyBytes) > 0 {
				if err := json.Unmarshal(bodyBytes, &rpcReq); err != nil {
					logger.Debug("Failed to parse MCP request JSON", zap.Error(err))
				}
			}
			toolName := rpcReq.Params.Name

			recorder := &mcpResponseRecorder{ResponseWriter: w}
			start := time.Now()
			next.ServeHTTP(recorder, r)
			duration := time.Since(start)

			outcome, rpcErr := classifyResponse(recorder.body.Bytes())
			if rpcReq.Method == "tools/call" && outcome != "" {
				m.ObserveMCPToolCall(toolName, outcome)
			}

			fields := []zap.Field{
				zap.String("request_id", RequestID(r.Context())),
				zap.String("method", rpcReq.Method),
				zap.String("tool", toolName),
				zap.Any("arguments", sanitizeArguments(rpcReq.Params.Arguments)),
				zap.Duration("duration", duration),
			}
			switch {
			case rpcErr != nil:
				logger.Info("MCP call failed", append(fields,
					zap.Int("error_code", rpcErr.Code),
					zap.String("error_message", rpcErr.Message))...)
			case outcome == metrics.OutcomeError:
				logger.Info("MCP tool returned error result", fields...)
			default:
				logger.Debug("MCP call", append(fields, zap.String("outcome", outcome))...)
			}
		})
	}
}

// classifyResponse inspects a JSON-RPC response body. It returns "" when the
// body is not a single JSON-RPC response (notifications, SSE streams).
func classifyResponse(body []byte) (string, *jsonRPCError) {
	var resp jsonRPCResponse
	if len(body) == 0 || json.Unmarshal(body, &resp) != nil {
		return "", nil
	}
	if resp.Error != nil {
		return metrics.OutcomeError, resp.Error
	}
	if resp.Result.IsError {
		return metrics.OutcomeError, nil
	}
	return metrics.OutcomeSuccess, nil
}

type jsonRPCRequest struct {
	Method string `json:"method"`
	Params struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	} `json:"params"`
}

type jsonRPCResponse struct {
	Result struct {
		IsError bool `json:"isError"`
	} `json:"result"`
	Error *jsonRPCError `json:"error"`
}

type jsonRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// mcpResponseRecorder tees the response body into a buffer.
type mcpResponseRecorder struct {
	http.ResponseWriter
	body bytes.Buffer
}

func (r *mcpResponseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *mcpResponseRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

var sensitiveKeywords = []string{"password", "secret", "token", "key", "credential"}

// sanitizeArguments redacts sensitive fields and truncates long strings.
func sanitizeArguments(args map[string]any) map[string]any {
	if args == nil {
		return nil
	}

	result := make(map[string]any, len(args))
	for k, v := range args {
		if isSensitiveKey(k) {
			result[k] = logging.RedactedText
			continue
		}
		if str, ok := v.(string); ok {
			result[k] = logging.TruncateString(str, maxLoggedArgLength)
			continue
		}
		result[k] = v
	}
	return result
}

func isSensitiveKey(k string) bool {
	lower := strings.ToLower(k)
	for _, keyword := range sensitiveKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}
