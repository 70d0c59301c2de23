package health

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"infracopilot/internal/config"
	"infracopilot/internal/types"

	"go.uber.org/zap"
)

const (
	defaultManagementURL = "https://management.azure.com"
	defaultLoginURL      = "https://login.microsoftonline.com"
	managementScope      = "https://management.azure.com/.default"
)

// TokenProvider acquires an access token for the cloud management API
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// ClientCredentialsProvider acquires tokens with the OAuth2 client
// credentials flow and caches them until shortly before expiry
type ClientCredentialsProvider struct {
	config   config.AzureConfig
	client   *http.Client
	loginURL string

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewClientCredentialsProvider creates a new client credentials token provider
func NewClientCredentialsProvider(cfg config.AzureConfig) *ClientCredentialsProvider {
	return &ClientCredentialsProvider{
		config:   cfg,
		client:   &http.Client{Timeout: cfg.Timeout},
		loginURL: defaultLoginURL,
	}
}

// Token returns a cached token or requests a fresh one
func (p *ClientCredentialsProvider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != "" && time.Now().Before(p.expires) {
		return p.token, nil
	}

	if p.config.TenantID == "" || p.config.ClientID == "" || p.config.ClientSecret == "" {
		return "", fmt.Errorf("azure credentials are not set")
	}

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {p.config.ClientID},
		"client_secret": {p.config.ClientSecret},
		"scope":         {managementScope},
	}

	endpoint := fmt.Sprintf("%s/%s/oauth2/v2.0/token", p.loginURL, p.config.TenantID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("token request returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("token response contained no access token")
	}

	p.token = payload.AccessToken
	p.expires = time.Now().Add(time.Duration(payload.ExpiresIn)*time.Second - time.Minute)

	return p.token, nil
}

// AzureChecker checks the configured Azure resource group
type AzureChecker struct {
	config  config.AzureConfig
	tokens  TokenProvider
	client  *http.Client
	baseURL string
	logger  *zap.Logger
}

// NewAzureChecker creates a new Azure health checker
func NewAzureChecker(cfg config.AzureConfig, tokens TokenProvider, logger *zap.Logger) *AzureChecker {
	client := &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			IdleConnTimeout:     90 * time.Second,
			MaxIdleConnsPerHost: 10,
		},
	}

	return &AzureChecker{
		config:  cfg,
		tokens:  tokens,
		client:  client,
		baseURL: defaultManagementURL,
		logger:  logger,
	}
}

// Check evaluates the configured Azure scope. Absent scope identifiers
// short-circuit before any network call; every other failure is captured in
// the snapshot, never returned.
func (c *AzureChecker) Check(ctx context.Context) *types.AzureHealth {
	if !c.config.Configured() {
		return &types.AzureHealth{
			Configured:      false,
			Status:          types.AzureStatusNotConfigured,
			Message:         "Set azure.subscription_id and azure.resource_group to enable Azure checks.",
			VMs:             []types.AzureResource{},
			AppServices:     []types.AzureResource{},
			StorageAccounts: []types.AzureResource{},
			Warnings:        []string{},
		}
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		c.logger.Warn("Azure token acquisition failed", zap.Error(err))
		return &types.AzureHealth{
			Configured:      true,
			Status:          types.AzureStatusAuthFailed,
			Message:         fmt.Sprintf("Azure auth failed: %v", err),
			VMs:             []types.AzureResource{},
			AppServices:     []types.AzureResource{},
			StorageAccounts: []types.AzureResource{},
			Warnings:        []string{fmt.Sprintf("AZURE: auth_failed - %v", err)},
		}
	}

	snapshot := &types.AzureHealth{
		Configured:      true,
		Message:         "Azure checks executed.",
		VMs:             []types.AzureResource{},
		AppServices:     []types.AzureResource{},
		StorageAccounts: []types.AzureResource{},
		Warnings:        []string{},
	}

	c.checkVMs(ctx, token, snapshot)
	c.checkAppServices(ctx, token, snapshot)
	c.checkStorageAccounts(ctx, token, snapshot)

	snapshot.Status = types.AzureStatusOK
	if len(snapshot.Warnings) > 0 {
		snapshot.Status = types.AzureStatusWarnings
	}

	return snapshot
}

// armResource is a generic ARM list entry
type armResource struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Properties struct {
		State             string `json:"state"`
		ProvisioningState string `json:"provisioningState"`
	} `json:"properties"`
}

// armList is a generic ARM list response
type armList struct {
	Value []armResource `json:"value"`
}

// checkVMs lists virtual machines and resolves their power state
func (c *AzureChecker) checkVMs(ctx context.Context, token string, snapshot *types.AzureHealth) {
	listURL := fmt.Sprintf("%s/subscriptions/%s/resourceGroups/%s/providers/Microsoft.Compute/virtualMachines?api-version=%s",
		c.baseURL, c.config.SubscriptionID, c.config.ResourceGroup, c.config.VMAPIVersion)

	var list armList
	if err := c.getJSON(ctx, token, listURL, &list); err != nil {
		snapshot.Warnings = append(snapshot.Warnings, fmt.Sprintf("AZURE: VM list failed - %v", err))
		return
	}

	for _, item := range list.Value {
		state := c.vmPowerState(ctx, token, item.ID)
		healthy := state == "running" || state == "stopped" || state == "deallocated"
		snapshot.VMs = append(snapshot.VMs, types.AzureResource{
			Name:    item.Name,
			State:   state,
			Healthy: healthy,
		})
		if !healthy {
			snapshot.Warnings = append(snapshot.Warnings, fmt.Sprintf("AZURE: VM %s state=%s", item.Name, state))
		}
	}
}

// vmPowerState resolves the power state from the VM instance view
func (c *AzureChecker) vmPowerState(ctx context.Context, token, vmID string) string {
	viewURL := fmt.Sprintf("%s%s/instanceView?api-version=%s", c.baseURL, vmID, c.config.VMAPIVersion)

	var view struct {
		Statuses []struct {
			Code string `json:"code"`
		} `json:"statuses"`
	}
	if err := c.getJSON(ctx, token, viewURL, &view); err != nil {
		c.logger.Warn("VM instance view failed", zap.String("vm_id", vmID), zap.Error(err))
		return "unknown"
	}

	for _, status := range view.Statuses {
		if strings.HasPrefix(status.Code, "PowerState/") {
			return strings.TrimPrefix(status.Code, "PowerState/")
		}
	}
	return "unknown"
}

// checkAppServices lists app services and evaluates their state
func (c *AzureChecker) checkAppServices(ctx context.Context, token string, snapshot *types.AzureHealth) {
	listURL := fmt.Sprintf("%s/subscriptions/%s/resourceGroups/%s/providers/Microsoft.Web/sites?api-version=%s",
		c.baseURL, c.config.SubscriptionID, c.config.ResourceGroup, c.config.WebAPIVersion)

	var list armList
	if err := c.getJSON(ctx, token, listURL, &list); err != nil {
		snapshot.Warnings = append(snapshot.Warnings, fmt.Sprintf("AZURE: AppService list failed - %v", err))
		return
	}

	for _, item := range list.Value {
		state := item.Properties.State
		if state == "" {
			state = "unknown"
		}
		healthy := strings.EqualFold(state, "running")
		snapshot.AppServices = append(snapshot.AppServices, types.AzureResource{
			Name:    item.Name,
			State:   state,
			Healthy: healthy,
		})
		if !healthy {
			snapshot.Warnings = append(snapshot.Warnings, fmt.Sprintf("AZURE: AppService %s state=%s", item.Name, state))
		}
	}
}

// checkStorageAccounts lists storage accounts and evaluates provisioning state
func (c *AzureChecker) checkStorageAccounts(ctx context.Context, token string, snapshot *types.AzureHealth) {
	listURL := fmt.Sprintf("%s/subscriptions/%s/resourceGroups/%s/providers/Microsoft.Storage/storageAccounts?api-version=%s",
		c.baseURL, c.config.SubscriptionID, c.config.ResourceGroup, c.config.StorageAPIVersion)

	var list armList
	if err := c.getJSON(ctx, token, listURL, &list); err != nil {
		snapshot.Warnings = append(snapshot.Warnings, fmt.Sprintf("AZURE: Storage list failed - %v", err))
		return
	}

	for _, item := range list.Value {
		state := item.Properties.ProvisioningState
		if state == "" {
			state = "unknown"
		}
		healthy := strings.EqualFold(state, "succeeded")
		snapshot.StorageAccounts = append(snapshot.StorageAccounts, types.AzureResource{
			Name:    item.Name,
			State:   state,
			Healthy: healthy,
		})
		if !healthy {
			snapshot.Warnings = append(snapshot.Warnings, fmt.Sprintf("AZURE: Storage %s provisioningState=%s", item.Name, state))
		}
	}
}

// getJSON performs an authenticated GET and decodes the JSON body
func (c *AzureChecker) getJSON(ctx context.Context, token, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
