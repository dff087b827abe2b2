package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os/exec"
	"strings"
	"time"

	"github.com/kubescape/evalresolver/core/domain"
	"github.com/kubescape/evalresolver/core/ports"
	"github.com/kubescape/go-logger"
	"github.com/kubescape/go-logger/helpers"
	"go.opentelemetry.io/otel"
)

const credentialHelperPrefix = "docker-credential-"

// ExternalCredentialHelper implements CredentialHelper by running docker-credential-<store> get
type ExternalCredentialHelper struct {
	timeout time.Duration
}

var _ ports.CredentialHelper = (*ExternalCredentialHelper)(nil)

// NewExternalCredentialHelper initializes the ExternalCredentialHelper struct
func NewExternalCredentialHelper(timeout time.Duration) *ExternalCredentialHelper {
	return &ExternalCredentialHelper{
		timeout: timeout,
	}
}

type helperResponse struct {
	ServerURL string `json:"ServerURL"`
	Username  string `json:"Username"`
	Secret    string `json:"Secret"`
}

// Get asks the helper for the credentials of serverURL.
// Any failure, including a helper that does not answer in time, reports no credentials.
func (e *ExternalCredentialHelper) Get(ctx context.Context, store, serverURL string) (domain.RegistryCredentials, bool) {
	ctx, span := otel.Tracer("").Start(ctx, "ExternalCredentialHelper.Get")
	defer span.End()

	binary := credentialHelperPrefix + store
	path, err := exec.LookPath(binary)
	if err != nil {
		logger.L().Debug("credential helper not found",
			helpers.String("helper", binary),
			helpers.Error(err))
		return domain.RegistryCredentials{}, false
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path, "get")
	cmd.Stdin = strings.NewReader(serverURL)
	cmd.Stderr = &stderr
	// don't wait forever on pipes held open by grandchildren of a killed helper
	cmd.WaitDelay = time.Second
	stdout, err := cmd.Output()
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		logger.L().Warning("credential helper timed out",
			helpers.String("helper", binary),
			helpers.String("serverURL", serverURL),
			helpers.String("timeout", e.timeout.String()))
		return domain.RegistryCredentials{}, false
	case err != nil:
		logger.L().Debug("credential helper failed",
			helpers.String("helper", binary),
			helpers.String("serverURL", serverURL),
			helpers.String("stderr", strings.TrimSpace(stderr.String())),
			helpers.Error(err))
		return domain.RegistryCredentials{}, false
	}

	var resp helperResponse
	if err := json.Unmarshal(stdout, &resp); err != nil {
		logger.L().Debug("credential helper returned malformed output",
			helpers.String("helper", binary),
			helpers.Error(err))
		return domain.RegistryCredentials{}, false
	}
	if resp.Secret == "" {
		return domain.RegistryCredentials{}, false
	}
	return domain.RegistryCredentials{
		Username: resp.Username,
		Password: resp.Secret,
		Source:   domain.SourceCredsHelper,
	}, true
}
