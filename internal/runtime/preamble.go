// Package runtime holds the fixed-text POSIX shell functions embedded
// ahead of main() in every emitted script. Storing them as contiguous
// string constants (rather than building them up piecewise from IR)
// keeps their behavior byte-identical across every emission and every
// dialect, per spec.md §9.
package runtime

// Require is rash_require(): fail loudly if a command is not on PATH.
const Require = `rash_require() {
    if ! command -v "$1" >/dev/null 2>&1; then
        echo "rash: required command not found: $1" >&2
        exit 127
    fi
}
`

// DownloadVerified is rash_download_verified(): fetch a URL with
// curl -fsSL, falling back to wget, and verify the download's SHA-256
// digest with sha256sum before returning success.
const DownloadVerified = `rash_download_verified() {
    _rash_url="$1"
    _rash_dest="$2"
    _rash_sha256="$3"
    if command -v curl >/dev/null 2>&1; then
        curl -fsSL -o "$_rash_dest" "$_rash_url"
    elif command -v wget >/dev/null 2>&1; then
        wget -q -O "$_rash_dest" "$_rash_url"
    else
        echo "rash: neither curl nor wget is available" >&2
        exit 127
    fi
    rash_require sha256sum
    _rash_actual=$(sha256sum "$_rash_dest" | awk '{print $1}')
    if [ "$_rash_actual" != "$_rash_sha256" ]; then
        echo "rash: checksum mismatch for $_rash_url" >&2
        echo "rash: expected $_rash_sha256, got $_rash_actual" >&2
        rm -f "$_rash_dest"
        exit 1
    fi
}
`

// DownloadVerifiedDisabled replaces DownloadVerified when the emitter's
// Config has VerifyMode disabled (see SPEC_FULL.md's Open Question
// resolution): downloads are never silently unverified, so the stub
// refuses to run rather than skipping the checksum.
const DownloadVerifiedDisabled = `rash_download_verified() {
    echo "rash: download verification is disabled in this build" >&2
    exit 1
}
`
