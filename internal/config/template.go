package config

// TemplateYAML 是 --init-config 写出的可运行配置模板。
// 注释保留在模板里，帮助首次使用者按需裁剪。
const TemplateYAML = `# tsckit 配置模板
# 优先级：CLI > ENV(TSCKIT_*) > 本文件 > 内置默认

# 脚本所在目录（dump/verify 的输入，write 的基准）
game_data_root: "data"

# 交换文件路径（dump 的输出，write 的输入）
translation_file: "dialogue.json"

# write 的输出根目录（目录层级保持与 game_data_root 一致）
output_dir: "out"

concurrency: 4

# 密码层：tsc（原始脚本集的中点混淆）| plain（明文脚本集）
cipher: "tsc"

# 对白载荷编码：utf8（字节直通）| sjis（日版脚本）
text_encoding: "utf8"

logging:
  level: "info"
  dir: "logs"

components:
  reader: "fs"
  writer: "fs"

options:
  reader:
    buf_size: 65536
    exclude_dir_names: [".git", "__backup"]
    allow_exts: [".tsc"]
  writer:
    atomic: true
    flat: false
    buf_size: 65536
`
