// Copyright 2021 The opener Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/cockroachdb/errors"
	"github.com/gogama/opener"
	"github.com/gogama/opener/request"
	"github.com/gogama/opener/response"
	"github.com/gogama/opener/timeout"
	"go.uber.org/zap"
)

// S3API is the part of the S3 client used by S3. The *s3.Client type
// implements it.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// An S3 is the scheme opener for s3://bucket/key URLs, which it fetches
// with GetObject.
//
// Service errors which carry an HTTP status, such as NoSuchKey, are
// reported as responses with that status and the error message as the
// body, so the caller sees them like any other status code. Other
// failures are returned as *url.Error.
type S3 struct {
	// Client performs GetObject calls.
	Client S3API
	// TimeoutPolicy bounds each fetch, including reading the body. If
	// nil, timeout.DefaultPolicy is used.
	TimeoutPolicy timeout.Policy
	// Log receives debug output. If nil, nothing is logged.
	Log *zap.Logger
}

// NewS3 returns an S3 opener whose client is configured from the
// default AWS configuration sources: environment, shared files and
// instance metadata.
func NewS3(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (*S3, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, errors.Wrap(err, "opener/transport: load AWS config")
	}
	return &S3{Client: s3.NewFromConfig(cfg)}, nil
}

// Capabilities implements opener.Handler.
func (t *S3) Capabilities() []opener.Capability {
	return opener.OpenCap("s3")
}

// Open implements opener.SchemeOpener.
func (t *S3) Open(_ *opener.Director, req *request.Request) (*response.Response, error) {
	if t.Client == nil {
		return nil, req.URLError(errors.New("opener/transport: no S3 client"))
	}
	bucket := req.URL.Host
	key := strings.TrimPrefix(req.URL.Path, "/")
	if bucket == "" || key == "" {
		return nil, req.URLError(errors.Newf("opener/transport: invalid s3 URL %q", req.URL))
	}
	if m := req.GetMethod(); m != http.MethodGet {
		return nil, req.URLError(errors.Newf("opener/transport: method %s not supported for s3", m))
	}

	policy := t.TimeoutPolicy
	if policy == nil {
		policy = timeout.DefaultPolicy
	}
	ctx, cancel := context.WithTimeout(req.Context(), policy.Timeout(req))
	out, err := t.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		cancel()
		if resp := t.errorResponse(req, err); resp != nil {
			return resp, nil
		}
		return nil, req.URLError(err)
	}

	header := make(http.Header)
	if out.ContentType != nil {
		header.Set("Content-Type", *out.ContentType)
	}
	if out.ContentLength != nil {
		header.Set("Content-Length", strconv.FormatInt(*out.ContentLength, 10))
	}
	if out.ETag != nil {
		header.Set("ETag", *out.ETag)
	}
	if out.LastModified != nil {
		header.Set("Last-Modified", out.LastModified.UTC().Format(http.TimeFormat))
	}
	body := &cancelBody{ReadCloser: out.Body, req: req, cancel: cancel}
	return response.New(body, header, req.URL, http.StatusOK, http.StatusText(http.StatusOK)), nil
}

// errorResponse converts a service error into a response, or returns
// nil if err is not a service error with a status code.
func (t *S3) errorResponse(req *request.Request, err error) *response.Response {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return nil
	}
	code := 0
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		code = respErr.HTTPStatusCode()
	}
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		code = http.StatusNotFound
	}
	if code == 0 {
		return nil
	}
	t.logger().Debug("s3 service error",
		zap.String("url", req.URL.String()),
		zap.String("code", apiErr.ErrorCode()),
		zap.Int("status", code))
	msg := apiErr.ErrorCode()
	return response.FromBytes([]byte(apiErr.ErrorMessage()), nil, req.URL, code, msg)
}

func (t *S3) logger() *zap.Logger {
	if t.Log == nil {
		return zap.NewNop()
	}
	return t.Log
}
