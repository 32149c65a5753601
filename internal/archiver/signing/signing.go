// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package signing declares the capability contract for applying an
// invisible PAdES signature (optionally timestamped under RFC3161) to
// an already-rendered PDF, plus the PKCS#12 material loading and
// certificate-validity checks that sit in front of it.
package signing

import (
	"crypto/x509"
	"fmt"
	"os"
	"time"
)

// Options carries the reason/location metadata embedded in the
// signature and whether an RFC3161 timestamp should be requested.
type Options struct {
	Reason            string
	Location          string
	TimestampEnabled  bool
	TimestampEndpoint string
}

// Signer applies a signature to a rendered PDF. A concrete
// implementation (PKCS#12 + PAdES + RFC3161) is an external
// collaborator outside this module's scope; only the contract, the
// material loading, and the certificate-validity check it depends on
// are implemented here.
type Signer interface {
	Sign(pdfBytes []byte, opts Options) ([]byte, error)
	CertFingerprint() (string, error)
}

// Material is the PKCS#12/PFX bundle a Signer needs: the raw bundle
// bytes and the password protecting it, loaded once at startup.
type Material struct {
	Path     string
	Bytes    []byte
	Password []byte
}

// Error reports a signing failure. Every signing failure is a
// configuration or cryptographic-material problem, so it always
// classifies Permanent: retrying an identical signing operation
// against the same expired or malformed certificate produces the same
// failure.
type Error struct {
	Code    string
	Message string
	cause   error
}

const (
	CodeMissingMaterial  = "missing_signing_material"
	CodeMaterialNotFound = "pfx_not_found"
	CodeMaterialInvalid  = "pfx_invalid"
	CodeCertNotYetValid  = "cert_not_yet_valid"
	CodeCertExpired      = "cert_expired"
	CodeSignFailed       = "sign_failed"
)

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("signing: %s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("signing: %s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

func newError(code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// LoadMaterial reads the PKCS#12/PFX bundle referenced by pfxPath. The
// password may be empty if the bundle isn't password-protected.
func LoadMaterial(pfxPath string, password []byte) (*Material, error) {
	if pfxPath == "" {
		return nil, newError(CodeMissingMaterial, "settings.signing.pfx_path is not set", nil)
	}
	info, err := os.Stat(pfxPath)
	if err != nil || info.IsDir() {
		return nil, newError(CodeMaterialNotFound, fmt.Sprintf("PFX file not found: %s", pfxPath), err)
	}
	data, err := os.ReadFile(pfxPath)
	if err != nil {
		return nil, newError(CodeMaterialNotFound, fmt.Sprintf("failed to read PFX file: %s", pfxPath), err)
	}
	return &Material{Path: pfxPath, Bytes: data, Password: password}, nil
}

// ValidateCertNotExpired checks the leaf certificate of a PKCS#12
// bundle, already decoded by the caller's PKCS#12 decoder, against its
// validity window as of now. The
// actual PKCS#12 decoding is performed by the concrete Signer
// implementation (out of scope here); this function is the shared,
// reusable validity check every such implementation must run before
// signing.
func ValidateCertNotExpired(cert *x509.Certificate, now time.Time) error {
	if cert == nil {
		return newError(CodeMaterialInvalid, "PKCS#12 bundle does not contain a certificate", nil)
	}
	if now.Before(cert.NotBefore) {
		return newError(CodeCertNotYetValid, fmt.Sprintf("signing certificate is not valid before %s", cert.NotBefore.UTC().Format(time.RFC3339)), nil)
	}
	if now.After(cert.NotAfter) {
		return newError(CodeCertExpired, fmt.Sprintf("signing certificate expired on %s", cert.NotAfter.UTC().Format(time.RFC3339)), nil)
	}
	return nil
}

// WrapSignFailure normalizes an arbitrary error from a concrete
// Signer's cryptographic backend into a signing.Error, unless it is
// already one.
func WrapSignFailure(err error) error {
	if err == nil {
		return nil
	}
	if se, ok := err.(*Error); ok {
		return se
	}
	return newError(CodeSignFailed, "failed to sign PDF", err)
}
