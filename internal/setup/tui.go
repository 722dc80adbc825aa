// Package setup implements the interactive configuration wizard.
package setup

import (
	"fmt"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/breakscan/config"
	"github.com/vadiminshakov/breakscan/internal/domain"
	"github.com/vadiminshakov/breakscan/internal/services/market/indicators"
	"github.com/vadiminshakov/breakscan/internal/services/market/providers"
	"github.com/vadiminshakov/breakscan/internal/services/universe"
)

// GeneratedConfig file the wizard writes.
const GeneratedConfig = "config.gen.yaml"

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// answers collected by the wizard.
type answers struct {
	index      string
	tickers    string
	rules      []string
	platform   string
	interval   string
	oscillator string
	volumeK    string
}

// RunTUI launches the terminal configuration wizard and returns the path of the saved config.
func RunTUI() (string, error) {
	a := answers{
		index:      universe.IndexSP500,
		rules:      []string{string(domain.RuleBreakout)},
		platform:   providers.PlatformYahoo,
		interval:   "1d",
		oscillator: indicators.OscillatorRSI,
		volumeK:    "1.5",
	}
	var confirm bool

	// step 1: universe
	screen("STEP 1: UNIVERSE")
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Pick the list of tickers to scan.\n"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Index").
				Options(
					huh.NewOption("S&P 500", universe.IndexSP500),
					huh.NewOption("Nasdaq 100", universe.IndexNasdaq100),
					huh.NewOption("Custom list", universe.IndexCustom),
				).
				Value(&a.index),
		),
	).Run()
	if err != nil {
		return "", err
	}

	if a.index == universe.IndexCustom {
		screen("STEP 1: CUSTOM TICKERS")
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Tickers").
					Description("Comma-separated (e.g. SPY, QQQ, IWM)").
					Value(&a.tickers).
					Validate(validateTickers),
			),
		).Run()
		if err != nil {
			return "", err
		}
	}

	// step 2: rules
	screen("STEP 2: SETUPS")
	ruleOptions := make([]huh.Option[string], 0, len(domain.AllRules))
	for _, r := range domain.AllRules {
		ruleOptions = append(ruleOptions, huh.NewOption(r.Title(), string(r)))
	}
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Rules to evaluate").
				Description("A ticker is reported when any selected rule fires").
				Options(ruleOptions...).
				Value(&a.rules).
				Validate(validateRules),
		),
	).Run()
	if err != nil {
		return "", err
	}

	// step 3: market data
	screen("STEP 3: MARKET DATA")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Data platform").
				Options(
					huh.NewOption("Yahoo Finance (US equities)", providers.PlatformYahoo),
					huh.NewOption("Binance", providers.PlatformBinance),
					huh.NewOption("Bybit", providers.PlatformBybit),
					huh.NewOption("Hyperliquid", providers.PlatformHyperliquid),
				).
				Value(&a.platform),
			huh.NewSelect[string]().
				Title("Bar interval").
				OptionsFunc(func() []huh.Option[string] {
					return intervalOptions(a.platform)
				}, &a.platform).
				Value(&a.interval),
		),
	).Run()
	if err != nil {
		return "", err
	}

	// step 4: thresholds
	screen("STEP 4: THRESHOLDS")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Oscillator").
				Options(
					huh.NewOption("RSI (14)", indicators.OscillatorRSI),
					huh.NewOption("Returns z-score (14)", indicators.OscillatorZScore),
				).
				Value(&a.oscillator),
			huh.NewInput().
				Title("Volume spike multiple").
				Description("Last volume must exceed this times the 10-bar average (e.g. 1.5)").
				Value(&a.volumeK).
				Validate(validatePositive),
		),
	).Run()
	if err != nil {
		return "", err
	}

	// confirmation
	screen("FINAL CONFIRMATION")
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(a.summary()))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save and scan").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return "", err
	}
	if !confirm {
		return "", errors.New("setup cancelled by user")
	}

	raw, err := a.config()
	if err != nil {
		return "", err
	}
	if err := config.WriteYaml(GeneratedConfig, raw); err != nil {
		return "", err
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s\nStarting scan...", GeneratedConfig)))
	time.Sleep(1500 * time.Millisecond) // small pause to read success message
	return GeneratedConfig, nil
}

func screen(step string) {
	fmt.Print("\033[H\033[2J") // clear screen
	fmt.Println(headerStyle.Render("BREAKSCAN CONFIG WIZARD"))
	fmt.Println(stepStyle.Render(step))
}

func (a answers) summary() string {
	universeLine := a.index
	if a.index == universe.IndexCustom {
		universeLine = fmt.Sprintf("custom (%s)", a.tickers)
	}
	return fmt.Sprintf(
		"Universe: %s\nRules: %v\nPlatform: %s\nInterval: %s\nOscillator: %s\nVolume spike: %sx\n",
		universeLine, a.rules, a.platform, a.interval, a.oscillator, a.volumeK,
	)
}

// config converts the answers into a raw config and checks it the way loading would.
func (a answers) config() (config.ConfigTmp, error) {
	var raw config.ConfigTmp
	raw.Universe.Index = a.index
	if a.index == universe.IndexCustom {
		raw.Universe.Tickers = a.tickers
	}
	raw.Market.Platform = a.platform
	raw.Market.Interval = a.interval
	raw.Scan.Rules = a.rules
	raw.Scan.Oscillator = a.oscillator
	raw.Thresholds.VolumeSpikeK = a.volumeK

	if _, err := config.Parse(raw); err != nil {
		return config.ConfigTmp{}, err
	}
	return raw, nil
}

func intervalOptions(platform string) []huh.Option[string] {
	opts := make([]huh.Option[string], 0, len(providers.Intervals))
	for _, iv := range providers.Intervals {
		if platform == providers.PlatformYahoo && iv == "4h" {
			continue
		}
		opts = append(opts, huh.NewOption(iv, iv))
	}
	return opts
}

func validateTickers(s string) error {
	_, err := universe.ParseCustom(s)
	return err
}

func validateRules(selected []string) error {
	_, err := domain.ParseRuleNames(selected)
	return err
}

func validatePositive(s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return errors.New("must be a valid number")
	}
	if !d.IsPositive() {
		return errors.New("must be greater than 0")
	}
	return nil
}
