package config

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Module metadata advertised to the host.
const (
	ModuleName        = "Cortex Analyzer"
	ModuleDescription = "Integrate with Cortex and run any Analyzer. Analyzer must be enabled within Cortex."
	InterfaceVersion  = "1.1"
	ModuleVersion     = "1.0"
)

// Param describes one configuration parameter for the host's settings form.
type Param struct {
	Name        string      `yaml:"param_name"`
	Key         string      `yaml:"config_key"`
	HumanName   string      `yaml:"param_human_name"`
	Description string      `yaml:"param_description"`
	Default     interface{} `yaml:"default"`
	Mandatory   bool        `yaml:"mandatory"`
	Type        string      `yaml:"type"`
	Section     string      `yaml:"section,omitempty"`
}

// Schema is the module's self-description.
type Schema struct {
	Name             string  `yaml:"module_name"`
	Description      string  `yaml:"module_description"`
	InterfaceVersion string  `yaml:"interface_version"`
	ModuleVersion    string  `yaml:"module_version"`
	PipelineSupport  bool    `yaml:"pipeline_support"`
	Configuration    []Param `yaml:"module_configuration"`
}

// ModuleSchema returns the parameter schema with current defaults.
func ModuleSchema() Schema {
	return Schema{
		Name:             ModuleName,
		Description:      ModuleDescription,
		InterfaceVersion: InterfaceVersion,
		ModuleVersion:    ModuleVersion,
		PipelineSupport:  false,
		Configuration: []Param{
			{
				Name: "cortexanalyzer_url", Key: KeyURL,
				HumanName: "Cortex URL", Description: "Cortex URL",
				Default: nil, Mandatory: true, Type: "string",
			},
			{
				Name: "cortexanalyzer_key", Key: KeyAPIKey,
				HumanName: "Cortex API Key", Description: "Cortex API key",
				Default: nil, Mandatory: true, Type: "sensitive_string",
			},
			{
				Name: "cortexanalyzer_analyzer", Key: KeyAnalyzer,
				HumanName: "Cortex Analyzer", Description: "Cortex Analyzer to run - I.E VirusTotal_GetReport_3_0",
				Default: DefaultAnalyzer, Mandatory: true, Type: "string",
			},
			{
				Name: "cortexanalyzer_manual_hook_enabled", Key: KeyManualHookEnabled,
				HumanName:   "Manual triggers on IOCs",
				Description: "Set to True to offers possibility to manually triggers the module via the UI",
				Default:     true, Mandatory: true, Type: "bool", Section: "Triggers",
			},
			{
				Name: "cortexanalyzer_on_create_hook_enabled", Key: KeyOnCreateHook,
				HumanName:   "Triggers automatically on IOC create",
				Description: "Set to True to automatically add a Cortex insight each time an IOC is created",
				Default:     false, Mandatory: true, Type: "bool", Section: "Triggers",
			},
			{
				Name: "cortexanalyzer_on_update_hook_enabled", Key: KeyOnUpdateHook,
				HumanName:   "Triggers automatically on IOC update",
				Description: "Set to True to automatically add a Cortex insight each time an IOC is updated",
				Default:     false, Mandatory: true, Type: "bool", Section: "Triggers",
			},
			{
				Name: "cortexanalyzer_report_as_attribute", Key: KeyReportAsAttribute,
				HumanName: "Add Cortex report as new IOC attribute",
				Description: "Creates a new attribute on the IOC, base on the Cortex report. Attributes are based " +
					"on the templates of this configuration",
				Default: true, Mandatory: true, Type: "bool", Section: "Insights",
			},
			{
				Name: "cortexanalyzer_report_template", Key: KeyReportTemplate,
				HumanName:   "Cortex Analyzer report template",
				Description: "Cortex Analyzer template used to add a new custom attribute to the target IOC",
				Default:     DefaultReportTemplate, Mandatory: false, Type: "textfield_html", Section: "Templates",
			},
		},
	}
}

// WriteSchema encodes the module schema as YAML.
func WriteSchema(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(ModuleSchema()); err != nil {
		return fmt.Errorf("encode schema: %w", err)
	}
	return enc.Close()
}
