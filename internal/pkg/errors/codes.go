package errors

import (
	"fmt"
	"net/http"
)

// Code represents an error code with HTTP status and message
type Code struct {
	Code    int    // Business error code
	Status  int    // HTTP status code
	Message string // Error message
}

// Error codes for different modules
const (
	// Success
	Success = 0

	// Common errors (1000-1999)
	ErrInternalServer  = 1000
	ErrInvalidParams   = 1001
	ErrNotFound        = 1002
	ErrConflict        = 1003
	ErrTooManyRequests = 1004
	ErrBadRequest      = 1005
	ErrServiceUnavail  = 1006

	// User errors (2000-2999)
	ErrUserNotFound       = 2000
	ErrUserExists         = 2001
	ErrUserEmailExists    = 2002
	ErrUserInvalidInput   = 2003
	ErrUserBlocked        = 2004
	ErrProfileNotFound    = 2005
	ErrUserBadCredentials = 2006

	// Post errors (3000-3999)
	ErrPostNotFound      = 3000
	ErrPostNameTaken     = 3001
	ErrPostInvalidInput  = 3002
	ErrPostImageNotFound = 3003

	// Media errors (4000-4999)
	ErrMediaUnsupportedFormat = 4000
	ErrMediaPayloadTooLarge   = 4001
	ErrMediaStorageFailure    = 4002
	ErrMediaAssetNotFound     = 4003
	ErrMediaDerivationFailed  = 4004
	ErrMediaOverloaded        = 4005
	ErrMediaOwnerNotFound     = 4006
)

// codeMap maps error codes to their details
var codeMap = map[int]Code{
	Success: {Success, http.StatusOK, "Success"},

	// Common errors
	ErrInternalServer:  {ErrInternalServer, http.StatusInternalServerError, "Internal server error"},
	ErrInvalidParams:   {ErrInvalidParams, http.StatusBadRequest, "Invalid parameters"},
	ErrNotFound:        {ErrNotFound, http.StatusNotFound, "Resource not found"},
	ErrConflict:        {ErrConflict, http.StatusConflict, "Resource conflict"},
	ErrTooManyRequests: {ErrTooManyRequests, http.StatusTooManyRequests, "Too many requests"},
	ErrBadRequest:      {ErrBadRequest, http.StatusBadRequest, "Bad request"},
	ErrServiceUnavail:  {ErrServiceUnavail, http.StatusServiceUnavailable, "Service unavailable"},

	// User errors
	ErrUserNotFound:       {ErrUserNotFound, http.StatusNotFound, "User not found"},
	ErrUserExists:         {ErrUserExists, http.StatusConflict, "Username already taken"},
	ErrUserEmailExists:    {ErrUserEmailExists, http.StatusConflict, "Email already registered"},
	ErrUserInvalidInput:   {ErrUserInvalidInput, http.StatusBadRequest, "Invalid user input"},
	ErrUserBlocked:        {ErrUserBlocked, http.StatusForbidden, "User is temporarily blocked"},
	ErrProfileNotFound:    {ErrProfileNotFound, http.StatusNotFound, "Profile not found"},
	ErrUserBadCredentials: {ErrUserBadCredentials, http.StatusUnauthorized, "Invalid username or password"},

	// Post errors
	ErrPostNotFound:      {ErrPostNotFound, http.StatusNotFound, "Post not found"},
	ErrPostNameTaken:     {ErrPostNameTaken, http.StatusConflict, "Post with the same name already exists"},
	ErrPostInvalidInput:  {ErrPostInvalidInput, http.StatusBadRequest, "Invalid post input"},
	ErrPostImageNotFound: {ErrPostImageNotFound, http.StatusNotFound, "Post image not found"},

	// Media errors
	ErrMediaUnsupportedFormat: {ErrMediaUnsupportedFormat, http.StatusBadRequest, "Unsupported file format"},
	ErrMediaPayloadTooLarge:   {ErrMediaPayloadTooLarge, http.StatusRequestEntityTooLarge, "File size exceeds limit"},
	ErrMediaStorageFailure:    {ErrMediaStorageFailure, http.StatusInternalServerError, "Storage operation failed"},
	ErrMediaAssetNotFound:     {ErrMediaAssetNotFound, http.StatusNotFound, "Asset not found"},
	ErrMediaDerivationFailed:  {ErrMediaDerivationFailed, http.StatusUnprocessableEntity, "Thumbnail generation failed"},
	ErrMediaOverloaded:        {ErrMediaOverloaded, http.StatusServiceUnavailable, "Thumbnail workers overloaded"},
	ErrMediaOwnerNotFound:     {ErrMediaOwnerNotFound, http.StatusNotFound, "Asset owner not found"},
}

// GetCode returns the Code for a given error code
func GetCode(code int) Code {
	if c, ok := codeMap[code]; ok {
		return c
	}
	return codeMap[ErrInternalServer]
}

// GetHTTPStatus returns HTTP status for a given error code
func GetHTTPStatus(code int) int {
	return GetCode(code).Status
}

// GetMessage returns the message for a given error code
func GetMessage(code int) string {
	return GetCode(code).Message
}

// IsClientError checks if the code represents a client error (4xx)
func IsClientError(code int) bool {
	status := GetHTTPStatus(code)
	return status >= 400 && status < 500
}

// IsServerError checks if the code represents a server error (5xx)
func IsServerError(code int) bool {
	return GetHTTPStatus(code) >= 500
}

// FormatError formats an error message with code
func FormatError(code int, details ...string) string {
	msg := GetMessage(code)
	if len(details) > 0 && details[0] != "" {
		return fmt.Sprintf("%s: %s", msg, details[0])
	}
	return msg
}
