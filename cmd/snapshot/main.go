package main

import (
	"fmt"
	"os"

	"trailhead/internal/markup"
	"trailhead/internal/verify"

	"github.com/playwright-community/playwright-go"
	log "github.com/sirupsen/logrus"
)

// snapshot captures the rendered markup of the target page without clicking
// anything, for use as a baseline when eyeballing a verification run's output.
// Usage: snapshot [url]
func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	target := verify.DefaultTargetURL
	if len(os.Args) > 1 {
		target = os.Args[1]
	}

	if err := playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}}); err != nil {
		log.Fatalf("install playwright: %v", err)
	}

	pw, err := playwright.Run()
	if err != nil {
		log.Fatalf("start playwright: %v", err)
	}
	defer pw.Stop()

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
	})
	if err != nil {
		log.Fatalf("launch browser: %v", err)
	}
	defer browser.Close()

	page, err := browser.NewPage(playwright.BrowserNewPageOptions{
		Viewport: &playwright.Size{Width: 1400, Height: 900},
	})
	if err != nil {
		log.Fatalf("new page: %v", err)
	}

	if _, err := page.Goto(target, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
	}); err != nil {
		log.Fatalf("goto: %v", err)
	}

	if _, err := page.WaitForSelector(verify.DefaultMarker, playwright.PageWaitForSelectorOptions{
		Timeout: playwright.Float(30_000),
	}); err != nil {
		log.Fatalf("wait for marker: %v", err)
	}

	content, err := page.Content()
	if err != nil {
		log.Fatalf("capture markup: %v", err)
	}

	snap, err := markup.Parse(content)
	if err != nil {
		log.Fatalf("parse markup: %v", err)
	}
	log.Infof("Captured %d bytes, %d map container(s)", len(content), snap.Count(verify.DefaultMarker))

	fmt.Println(content)
}
