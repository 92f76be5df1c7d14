package config

// DefaultReportTemplate renders the raw analyzer report in a collapsible card with a read-only JSON viewer.
// The report is bound as .results.
const DefaultReportTemplate = `<div class="row">
    <div class="col-12">
        <div class="accordion">
            <h3>Cortex raw results</h3>

            <div class="card">
                <div class="card-header collapsed" id="drop_r_cortexanalyzer" data-toggle="collapse" data-target="#drop_raw_cortexanalyzer" aria-expanded="false" aria-controls="drop_raw_cortexanalyzer" role="button">
                    <div class="span-icon">
                        <div class="flaticon-file"></div>
                    </div>
                    <div class="span-title">
                        Cortex raw results
                    </div>
                    <div class="span-mode"></div>
                </div>
                <div id="drop_raw_cortexanalyzer" class="collapse" aria-labelledby="drop_r_cortexanalyzer" style="">
                    <div class="card-body">
                        <div id='cortexanalyzer_raw_ace'>{{ tojsonIndent .results 4 }}</div>
                    </div>
                </div>
            </div>
        </div>
    </div>
</div>
<script>
var cortexanalyzer_in_raw = ace.edit("cortexanalyzer_raw_ace",
{
    autoScrollEditorIntoView: true,
    minLines: 30,
});
cortexanalyzer_in_raw.setReadOnly(true);
cortexanalyzer_in_raw.setTheme("ace/theme/tomorrow");
cortexanalyzer_in_raw.session.setMode("ace/mode/json");
cortexanalyzer_in_raw.renderer.setShowGutter(true);
cortexanalyzer_in_raw.setOption("showLineNumbers", true);
cortexanalyzer_in_raw.setOption("showPrintMargin", false);
cortexanalyzer_in_raw.setOption("displayIndentGuides", true);
cortexanalyzer_in_raw.setOption("maxLines", "Infinity");
cortexanalyzer_in_raw.session.setUseWrapMode(true);
cortexanalyzer_in_raw.setOption("indentedSoftWrap", true);
cortexanalyzer_in_raw.renderer.setScrollMargin(8, 5);
</script>
`
