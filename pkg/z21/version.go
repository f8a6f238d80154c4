// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package z21

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Semver returns the firmware version as major.minor.0.
func (f FirmwareVersion) Semver() *semver.Version {
	return semver.New(uint64(f.Major), uint64(f.Minor), 0, "", "")
}

// Semver returns the firmware version as major.minor.0.
func (h HwInfo) Semver() *semver.Version {
	return semver.New(uint64(h.FirmwareMajor), uint64(h.FirmwareMinor), 0, "", "")
}

// FirmwareSatisfies checks a firmware version against a semver constraint
// such as ">= 1.20".
func FirmwareSatisfies(v *semver.Version, constraint string) (bool, error) {
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return false, fmt.Errorf("invalid firmware constraint %q: %w", constraint, err)
	}
	return c.Check(v), nil
}
