package client

import (
	"context"
	"fmt"

	"github.com/Masterminds/semver/v3"

	"payrecorder.mini/prm/internal/types"
)

// ServerVersion returns the version string reported by /api/version.
func (c *Client) ServerVersion(ctx context.Context) (string, error) {
	var info map[string]string
	if err := c.get(ctx, "/api/version", &info); err != nil {
		return "", err
	}
	if info["version"] == "" {
		return "", fmt.Errorf("server did not report a version")
	}
	return info["version"], nil
}

// CheckCompatible fails when the server speaks a different API line than
// this client.
func (c *Client) CheckCompatible(ctx context.Context) (string, error) {
	serverVer, err := c.ServerVersion(ctx)
	if err != nil {
		return "", err
	}
	ok, err := Compatible(types.Version, serverVer)
	if err != nil {
		return serverVer, err
	}
	if !ok {
		return serverVer, fmt.Errorf("server version %s is not compatible with client %s", serverVer, types.Version)
	}
	return serverVer, nil
}

// Compatible reports whether two versions share an API line: the same
// major version, and for 0.x the same minor version.
func Compatible(clientVer, serverVer string) (bool, error) {
	cv, err := semver.NewVersion(clientVer)
	if err != nil {
		return false, fmt.Errorf("client version: %w", err)
	}
	sv, err := semver.NewVersion(serverVer)
	if err != nil {
		return false, fmt.Errorf("server version: %w", err)
	}
	if cv.Major() != sv.Major() {
		return false, nil
	}
	if cv.Major() == 0 {
		return cv.Minor() == sv.Minor(), nil
	}
	return true, nil
}
