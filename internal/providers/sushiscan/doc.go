// Package sushiscan implements providers.Scraper for the two SushiScan
// domains. Extraction runs over static HTML as ordered lists of strategies
// where the first non-empty result wins; fetching the pages is the only
// network work done here.
package sushiscan
