// Package signal flags methods that touch security-relevant behavior:
// string constants that look like URLs, keys or credentials, and calls into
// Android and Java APIs for telephony, crypto, dynamic code loading and the
// like.
package signal

import (
	"math"
	"regexp"
	"strings"
)

// Categories.
const (
	CatURL        = "url"
	CatHost       = "host"
	CatCrypto     = "crypto"
	CatAuth       = "auth"
	CatNet        = "net"
	CatFile       = "file"
	CatKey        = "key" // high-entropy base64/hex literal
	CatTelephony  = "telephony"
	CatSMS        = "sms"
	CatContacts   = "contacts"
	CatLocation   = "location"
	CatDevice     = "device"
	CatCamera     = "camera"
	CatWebView    = "webview"
	CatDynLoad    = "dynload" // class loaders, dex files at runtime
	CatExec       = "exec"
	CatReflection = "reflection"
	CatNative     = "native"
)

var (
	reURL       = regexp.MustCompile(`(?i)\b(https?|wss?|ftp|content|file)://`)
	reIPLiteral = regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`)
	reKey       = regexp.MustCompile(`^[A-Za-z0-9+/=]{20,}$`)

	// Short words need boundaries: "rsa" sits inside "universal", "iv"
	// inside "activity".
	reCryptoShort = regexp.MustCompile(`(?i)(^|[^a-zA-Z])(aes|des|rsa|ecdsa|hmac|sha-?1|sha-?256|sha-?512|md5|cbc|ecb|gcm|pkcs\d*|rc4)([^a-zA-Z]|$)`)
	cryptoWords   = []string{"encrypt", "decrypt", "cipher", "secretkeyspec", "ivparameterspec", "messagedigest", "keystore", "pbkdf2"}

	reAuth = regexp.MustCompile(`(?i)(^|[^a-zA-Z])(oauth|jwt|bearer|password|passwd|secret|token|api[_-]?key|authorization|credential)([^a-zA-Z]|$)`)

	httpMethods = []string{"GET", "POST", "PUT", "DELETE", "PATCH", "HEAD"}
	netWords    = []string{"socket", "useragent", "user-agent", "content-type", "proxy"}

	fileExts = []string{".dex", ".jar", ".apk", ".so", ".zip", ".db", ".sqlite", ".pem", ".crt", ".p12", ".bks", ".jks"}

	telephonyWords = []string{"imei", "imsi", "iccid", "getdeviceid", "getsubscriberid", "getline1number", "simserial", "simoperator"}
	reSMS          = regexp.MustCompile(`(?i)(^|[^a-zA-Z])(sms|mms|pdus)([^a-zA-Z]|$)`)
	locationWords  = []string{"latitude", "longitude", "geofence", "lastknownlocation", "fusedlocation"}
	deviceWords    = []string{"android_id", "androidid", "ro.build", "ro.product", "getinstalledpackages", "serialno"}
	webviewWords   = []string{"addjavascriptinterface", "evaluatejavascript", "javascript:", "loadurl"}
	dynloadWords   = []string{"dexclassloader", "pathclassloader", "inmemorydexclassloader", "loaddex", "dalviksystem"}
	reExec         = regexp.MustCompile(`(^|\s|/)(su|sh|chmod|getprop|setprop|logcat)(\s|$)`)
)

// ClassifyString returns the categories a const-string value falls into,
// nil when it carries none.
func ClassifyString(value string) []string {
	if len(value) < 2 {
		return nil
	}
	var cats []string
	add := func(c string) {
		if !containsCat(cats, c) {
			cats = append(cats, c)
		}
	}
	lower := strings.ToLower(value)
	norm := normalizeForMatch(value)

	if reURL.MatchString(value) {
		add(CatURL)
	}
	if reIPLiteral.MatchString(value) {
		add(CatHost)
	}
	if containsAny(norm, cryptoWords) || reCryptoShort.MatchString(value) {
		add(CatCrypto)
	}
	if reAuth.MatchString(value) {
		add(CatAuth)
	}
	for _, m := range httpMethods {
		if value == m {
			add(CatNet)
		}
	}
	if containsAny(lower, netWords) {
		add(CatNet)
	}
	for _, ext := range fileExts {
		if strings.HasSuffix(lower, ext) {
			add(CatFile)
			break
		}
	}
	trimmed := strings.TrimSpace(value)
	if reKey.MatchString(trimmed) && entropy(trimmed) > 3.5 && !isCamelCase(trimmed) {
		add(CatKey)
	}
	if containsAny(norm, telephonyWords) {
		add(CatTelephony)
	}
	if reSMS.MatchString(value) {
		add(CatSMS)
	}
	if strings.Contains(lower, "content://contacts") || strings.Contains(lower, "content://com.android.contacts") {
		add(CatContacts)
	}
	if containsAny(norm, locationWords) || strings.EqualFold(value, "gps") {
		add(CatLocation)
	}
	if containsAny(lower, deviceWords) {
		add(CatDevice)
	}
	if containsAny(lower, webviewWords) {
		add(CatWebView)
	}
	if containsAny(norm, dynloadWords) {
		add(CatDynLoad)
	}
	if reExec.MatchString(value) || strings.HasPrefix(value, "/system/bin/") || strings.HasPrefix(value, "/system/xbin/") {
		add(CatExec)
	}
	return cats
}

// apiRule tags calls whose resolved target starts with prefix.
type apiRule struct {
	prefix string
	cat    string
}

// apiRules is checked in order; a callee may match several.
var apiRules = []apiRule{
	{"Ljavax/crypto/", CatCrypto},
	{"Ljava/security/MessageDigest;", CatCrypto},
	{"Ljava/security/Signature;", CatCrypto},
	{"Ljava/security/KeyStore;", CatCrypto},
	{"Ljava/security/KeyPairGenerator;", CatCrypto},
	{"Landroid/util/Base64;", CatCrypto},
	{"Landroid/accounts/AccountManager;", CatAuth},
	{"Ljava/net/", CatNet},
	{"Ljavax/net/", CatNet},
	{"Lokhttp3/", CatNet},
	{"Lorg/apache/http/", CatNet},
	{"Landroid/net/ConnectivityManager;", CatNet},
	{"Landroid/telephony/SmsManager;", CatSMS},
	{"Landroid/telephony/SmsMessage;", CatSMS},
	{"Landroid/telephony/TelephonyManager;", CatTelephony},
	{"Landroid/provider/ContactsContract", CatContacts},
	{"Landroid/provider/CallLog", CatContacts},
	{"Landroid/location/", CatLocation},
	{"Lcom/google/android/gms/location/", CatLocation},
	{"Landroid/provider/Settings$Secure;", CatDevice},
	{"Landroid/os/Build;", CatDevice},
	{"Landroid/content/pm/PackageManager;->getInstalled", CatDevice},
	{"Landroid/hardware/Camera;", CatCamera},
	{"Landroid/hardware/camera2/", CatCamera},
	{"Landroid/media/MediaRecorder;", CatCamera},
	{"Landroid/webkit/", CatWebView},
	{"Ldalvik/system/", CatDynLoad},
	{"Ljava/lang/ClassLoader;->loadClass", CatDynLoad},
	{"Ljava/lang/Runtime;->exec", CatExec},
	{"Ljava/lang/ProcessBuilder;", CatExec},
	{"Ljava/lang/reflect/", CatReflection},
	{"Ljava/lang/Class;->forName", CatReflection},
	{"Ljava/lang/Class;->getMethod", CatReflection},
	{"Ljava/lang/Class;->getDeclared", CatReflection},
	{"Ljava/lang/System;->loadLibrary", CatNative},
	{"Ljava/lang/System;->load(", CatNative},
	{"Ljava/lang/Runtime;->loadLibrary", CatNative},
}

// ClassifyCallee returns the categories of a resolved invoke target such
// as "Landroid/telephony/SmsManager;->sendTextMessage(...)V". Unresolved
// targets ("method@1f") never match.
func ClassifyCallee(name string) []string {
	var cats []string
	for _, r := range apiRules {
		if strings.HasPrefix(name, r.prefix) && !containsCat(cats, r.cat) {
			cats = append(cats, r.cat)
		}
	}
	return cats
}

// Severity levels.
const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
	SeverityLow    = "low"
)

// CategorySeverity returns the severity of a category.
func CategorySeverity(cat string) string {
	switch cat {
	case CatCrypto, CatAuth, CatSMS, CatContacts, CatTelephony, CatDynLoad, CatExec:
		return SeverityHigh
	case CatURL, CatHost, CatKey, CatLocation, CatDevice, CatCamera, CatWebView, CatReflection, CatNative:
		return SeverityMedium
	}
	return SeverityLow
}

// MaxSeverity returns the highest severity among categories, low for none.
func MaxSeverity(categories []string) string {
	best := SeverityLow
	for _, c := range categories {
		switch CategorySeverity(c) {
		case SeverityHigh:
			return SeverityHigh
		case SeverityMedium:
			best = SeverityMedium
		}
	}
	return best
}

// isCamelCase reports a lower-to-upper transition ("getDeviceId").
func isCamelCase(s string) bool {
	for i := 1; i < len(s); i++ {
		if s[i-1] >= 'a' && s[i-1] <= 'z' && s[i] >= 'A' && s[i] <= 'Z' {
			return true
		}
	}
	return false
}

// normalizeForMatch lowercases s and drops '_', '-', ' ' and '.', so
// "getDeviceId", "get_device_id" and "get device id" compare equal.
func normalizeForMatch(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, c := range strings.ToLower(s) {
		switch c {
		case '_', '-', ' ', '.':
		default:
			b.WriteRune(c)
		}
	}
	return b.String()
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func containsCat(cats []string, cat string) bool {
	for _, c := range cats {
		if c == cat {
			return true
		}
	}
	return false
}

// entropy is the Shannon entropy of s in bits per byte.
func entropy(s string) float64 {
	if s == "" {
		return 0
	}
	var freq [256]int
	for i := 0; i < len(s); i++ {
		freq[s[i]]++
	}
	n := float64(len(s))
	var e float64
	for _, c := range freq {
		if c > 0 {
			p := float64(c) / n
			e -= p * math.Log2(p)
		}
	}
	return e
}
