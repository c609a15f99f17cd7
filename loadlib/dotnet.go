package loadlib

import (
	"debug/pe"
	"encoding/binary"
	"encoding/xml"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Managed assemblies cannot be dlopen'd: they need a runtime host. The load
// here validates that a host exists and that the image is a CLI assembly,
// and resolves the default exported namespace used as the callable surface.
//
// Assemblies built against a legacy runtime (v1.x/v2.x metadata) cannot be
// activated by a v4 host unless the host's config file enables the legacy
// activation policy. When that case is detected the config file adjacent to
// the host executable is repaired once and the load fails with
// ErrConfigUpdated so the caller can retry — there is no retry loop here.

func loadNet(path string) (string, error) {
	host, err := findManagedHost()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRuntimeUnavailable, err)
	}

	runtimeVersion, err := readAssemblyRuntime(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrIncompatibleRuntime, err)
	}

	if strings.HasPrefix(runtimeVersion, "v1") || strings.HasPrefix(runtimeVersion, "v2") {
		updated, cfgErr := ensureLegacyConfig(host)
		if cfgErr != nil {
			return "", fmt.Errorf("%w: assembly targets %s and the host config could not be repaired: %v",
				ErrIncompatibleRuntime, runtimeVersion, cfgErr)
		}
		if updated {
			return "", fmt.Errorf("%w: enabled useLegacyV2RuntimeActivationPolicy in %s.config for a %s assembly",
				ErrConfigUpdated, host, runtimeVersion)
		}
		// Policy already enabled — the host can activate the assembly.
	}

	// The default exported namespace of an assembly conventionally matches
	// its file name.
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base)), nil
}

// findManagedHost locates a managed-runtime host executable on PATH.
func findManagedHost() (string, error) {
	for _, name := range []string{"mono", "dotnet"} {
		if host, err := exec.LookPath(name); err == nil {
			return host, nil
		}
	}
	return "", fmt.Errorf("neither mono nor dotnet found on PATH")
}

// readAssemblyRuntime extracts the runtime version string (e.g. "v4.0.30319")
// from the CLI metadata of a PE image. A missing CLR directory means the
// file is not a managed assembly.
func readAssemblyRuntime(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	img, err := pe.NewFile(f)
	if err != nil {
		return "", fmt.Errorf("not a PE image: %v", err)
	}
	defer img.Close()

	// Data directory slot 14 is the COM descriptor (CLR header).
	const comDescriptorEntry = 14
	var dir pe.DataDirectory
	switch hdr := img.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		dir = hdr.DataDirectory[comDescriptorEntry]
	case *pe.OptionalHeader64:
		dir = hdr.DataDirectory[comDescriptorEntry]
	default:
		return "", fmt.Errorf("missing optional header")
	}
	if dir.VirtualAddress == 0 {
		return "", fmt.Errorf("no CLR directory: not a managed assembly")
	}

	// IMAGE_COR20_HEADER: the metadata root RVA sits at offset 8.
	cor20 := make([]byte, 16)
	if err := readRVA(f, img, dir.VirtualAddress, cor20); err != nil {
		return "", fmt.Errorf("reading CLR header: %v", err)
	}
	metaRVA := binary.LittleEndian.Uint32(cor20[8:12])

	// Metadata root: 4-byte signature "BSJB", versions, reserved, then a
	// length-prefixed runtime version string.
	root := make([]byte, 16)
	if err := readRVA(f, img, metaRVA, root); err != nil {
		return "", fmt.Errorf("reading metadata root: %v", err)
	}
	if binary.LittleEndian.Uint32(root[0:4]) != 0x424A5342 {
		return "", fmt.Errorf("bad metadata signature")
	}
	strLen := binary.LittleEndian.Uint32(root[12:16])
	if strLen == 0 || strLen > 256 {
		return "", fmt.Errorf("bad metadata version length %d", strLen)
	}

	version := make([]byte, strLen)
	if err := readRVA(f, img, metaRVA+16, version); err != nil {
		return "", fmt.Errorf("reading metadata version: %v", err)
	}
	return strings.TrimRight(string(version), "\x00"), nil
}

// readRVA translates a virtual address into a file offset through the
// section table and reads len(buf) bytes from there.
func readRVA(f *os.File, img *pe.File, rva uint32, buf []byte) error {
	for _, sec := range img.Sections {
		size := sec.VirtualSize
		if size == 0 {
			size = sec.Size
		}
		if rva >= sec.VirtualAddress && rva < sec.VirtualAddress+size {
			offset := int64(rva-sec.VirtualAddress) + int64(sec.Offset)
			_, err := f.ReadAt(buf, offset)
			return err
		}
	}
	return fmt.Errorf("rva 0x%x outside all sections", rva)
}

type netStartup struct {
	LegacyPolicy string `xml:"useLegacyV2RuntimeActivationPolicy,attr"`
}

type netConfiguration struct {
	XMLName xml.Name    `xml:"configuration"`
	Startup *netStartup `xml:"startup"`
}

const legacyPolicyFix = `    <startup useLegacyV2RuntimeActivationPolicy="true">
        <supportedRuntime version="v4.0" />
        <supportedRuntime version="v2.0.50727" />
    </startup>
`

// ensureLegacyConfig checks the <host-exe>.config file for the legacy
// activation policy. It returns (false, nil) when the policy is already
// enabled, (true, nil) when the file was created or the policy was inserted,
// and an error when the existing file cannot be repaired.
//
// Existing configuration content is preserved: the fix is inserted before
// the closing tag instead of rewriting the document.
func ensureLegacyConfig(hostExe string) (bool, error) {
	configPath := hostExe + ".config"

	raw, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		content := "<?xml version=\"1.0\"?>\n<configuration>\n" + legacyPolicyFix + "</configuration>\n"
		if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
			return false, err
		}
		return true, nil
	}
	if err != nil {
		return false, err
	}

	var cfg netConfiguration
	if err := xml.Unmarshal(raw, &cfg); err != nil {
		return false, fmt.Errorf("invalid XML in %s: %v", configPath, err)
	}
	if cfg.XMLName.Local != "configuration" {
		return false, fmt.Errorf("%s: root element is %q, want \"configuration\"", configPath, cfg.XMLName.Local)
	}

	if cfg.Startup != nil && cfg.Startup.LegacyPolicy != "" {
		if strings.EqualFold(cfg.Startup.LegacyPolicy, "true") {
			return false, nil
		}
		return false, fmt.Errorf("%s: useLegacyV2RuntimeActivationPolicy is disabled", configPath)
	}

	content := string(raw)
	idx := strings.LastIndex(content, "</configuration>")
	if idx < 0 {
		return false, fmt.Errorf("%s: missing </configuration> closing tag", configPath)
	}
	content = content[:idx] + legacyPolicyFix + content[idx:]
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		return false, err
	}
	return true, nil
}
