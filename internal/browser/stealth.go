package browser

import (
	"math/rand"

	"github.com/playwright-community/playwright-go"

	"github.com/fetchwise/product-scraper/internal/normalize"
)

// stealthArgs hide the usual automation tells: webdriver flags, WebRTC IP
// leaks, canvas/WebGL fingerprint surface, background throttling.
func stealthArgs() []string {
	return []string{
		"--disable-blink-features=AutomationControlled",
		"--disable-automation",
		"--disable-dev-shm-usage",
		"--disable-setuid-sandbox",
		"--no-sandbox",
		"--no-first-run",
		"--no-zygote",
		"--disable-gpu",
		"--disable-background-timer-throttling",
		"--disable-backgrounding-occluded-windows",
		"--disable-renderer-backgrounding",
		"--disable-background-networking",
		"--disable-client-side-phishing-detection",
		"--disable-component-extensions-with-background-pages",
		"--disable-default-apps",
		"--disable-domain-reliability",
		"--disable-extensions",
		"--disable-hang-monitor",
		"--disable-ipc-flooding-protection",
		"--disable-prompt-on-repost",
		"--disable-sync",
		"--disable-translate",
		"--hide-scrollbars",
		"--mute-audio",
		"--disable-webrtc-encryption",
		"--disable-webrtc-hw-encoding",
		"--disable-webrtc-hw-decoding",
		"--disable-webrtc-multiple-routes",
		"--disable-accelerated-2d-canvas",
		"--disable-webgl",
		"--disable-webgl2",
		"--disable-features=TranslateUI,VizDisplayCompositor,site-per-process",
		"--disable-site-isolation-trials",
		"--force-color-profile=srgb",
		"--metrics-recording-only",
		"--password-store=basic",
		"--use-mock-keychain",
		"--memory-pressure-off",
		"--lang=en-US,en",
		"--accept-lang=en-US,en;q=0.9",
	}
}

var viewports = []playwright.Size{
	{Width: 1920, Height: 1080},
	{Width: 1366, Height: 768},
	{Width: 1440, Height: 900},
	{Width: 1536, Height: 864},
	{Width: 1280, Height: 720},
}

func randomViewport() *playwright.Size {
	v := viewports[rand.Intn(len(viewports))]
	return &v
}

func stealthHeaders() map[string]string {
	return map[string]string{
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,image/apng,*/*;q=0.8",
		"Accept-Language":           "en-US,en;q=0.9",
		"Accept-Encoding":           "gzip, deflate, br",
		"DNT":                       "1",
		"Upgrade-Insecure-Requests": "1",
		"Sec-Fetch-Dest":            "document",
		"Sec-Fetch-Mode":            "navigate",
		"Sec-Fetch-Site":            "none",
		"Sec-Fetch-User":            "?1",
		"Cache-Control":             "max-age=0",
	}
}

// stealthContextOptions build a realistic desktop identity. European targets
// get an Amsterdam geolocation so region-gated storefronts serve the page.
func stealthContextOptions(userAgent, targetURL string) playwright.BrowserNewContextOptions {
	opts := playwright.BrowserNewContextOptions{
		AcceptDownloads:   playwright.Bool(false),
		JavaScriptEnabled: playwright.Bool(true),
		IgnoreHttpsErrors: playwright.Bool(true),
		Locale:            playwright.String("en-US"),
		TimezoneId:        playwright.String("Europe/Amsterdam"),
		Viewport:          randomViewport(),
		ExtraHttpHeaders:  stealthHeaders(),
		HasTouch:          playwright.Bool(false),
		IsMobile:          playwright.Bool(false),
		DeviceScaleFactor: playwright.Float(1.0),
	}
	if userAgent != "" {
		opts.UserAgent = playwright.String(userAgent)
	}
	if normalize.IsEuropeanDomain(normalize.Domain(targetURL)) {
		opts.Geolocation = &playwright.Geolocation{
			Latitude:  52.3676,
			Longitude: 4.9041,
			Accuracy:  playwright.Float(100),
		}
		opts.Permissions = []string{"geolocation"}
	}
	return opts
}

// stealthInitScripts run before any page script and paper over the
// headless-Chromium giveaways bot checks probe for.
func stealthInitScripts() []string {
	return []string{
		`Object.defineProperty(navigator, 'webdriver', {
			get: () => undefined,
		});`,

		`Object.defineProperty(navigator, 'plugins', {
			get: () => [1, 2, 3, 4, 5],
		});`,

		`Object.defineProperty(navigator, 'languages', {
			get: () => ['en-US', 'en'],
		});`,

		`window.chrome = {
			runtime: {},
		};`,

		`const originalQuery = window.navigator.permissions.query;
		window.navigator.permissions.query = (parameters) => (
			parameters.name === 'notifications' ?
				Promise.resolve({ state: Notification.permission }) :
				originalQuery(parameters)
		);`,

		`const getParameter = WebGLRenderingContext.prototype.getParameter;
		WebGLRenderingContext.prototype.getParameter = function(parameter) {
			if (parameter === 37445) {
				return 'Intel Inc.';
			}
			if (parameter === 37446) {
				return 'Intel(R) Iris(TM) Graphics 6100';
			}
			return getParameter.apply(this, arguments);
		};`,
	}
}
