// Package scraper pulls HTML tables from web pages into tables using a
// headless Chrome driven by chromedp. Page loads are rate limited.
package scraper
